package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/signup-backend/internal/logger"
	"github.com/ignatzorin/signup-backend/internal/models"
	"github.com/ignatzorin/signup-backend/internal/notify"
	"github.com/ignatzorin/signup-backend/internal/pkg/apperror"
	"github.com/ignatzorin/signup-backend/internal/repository"
	"github.com/ignatzorin/signup-backend/internal/store"
)

// Назначение кода, передаваемое в сервис уведомлений.
const purposeRegistration = "Registration"

// UserDirectory описывает зависимости сервиса от справочника пользователей.
type UserDirectory interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

// OtpCodes описывает хранилище одноразовых кодов.
type OtpCodes interface {
	Generate(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, candidate string) (bool, error)
}

// PendingRegistrations описывает хранилище неподтверждённых заявок.
type PendingRegistrations interface {
	Put(ctx context.Context, email string, reg *models.PendingRegistration) error
	Get(ctx context.Context, email string) (*models.PendingRegistration, error)
	Delete(ctx context.Context, email string) error
}

// OtpDispatcher описывает отправку кода через канал уведомлений.
type OtpDispatcher interface {
	Send(ctx context.Context, email, code, purpose string) notify.DispatchResult
}

// PasswordHasher описывает одностороннее хеширование пароля.
type PasswordHasher interface {
	Hash(raw string) (string, error)
}

// RegistrationService оркестрирует двухфазную регистрацию:
// сначала заявка и код, затем подтверждение и запись в базу.
type RegistrationService struct {
	users      UserDirectory
	otp        OtpCodes
	pending    PendingRegistrations
	dispatcher OtpDispatcher
	hasher     PasswordHasher
}

// InitiateInput содержит данные заявки на регистрацию.
type InitiateInput struct {
	Email    string
	Username string
	Password string
}

// NewRegistrationService создаёт сервис регистрации.
func NewRegistrationService(
	users UserDirectory,
	otp OtpCodes,
	pending PendingRegistrations,
	dispatcher OtpDispatcher,
	hasher PasswordHasher,
) *RegistrationService {
	return &RegistrationService{
		users:      users,
		otp:        otp,
		pending:    pending,
		dispatcher: dispatcher,
		hasher:     hasher,
	}
}

// Initiate сохраняет неподтверждённую заявку и отправляет код на email.
// Повторный вызов для того же email перезаписывает заявку и код,
// перезапуская их TTL. Отказ канала доставки заявку не откатывает:
// вызывающий может запросить код ещё раз, не вводя данные заново.
func (s *RegistrationService) Initiate(ctx context.Context, in InitiateInput) (notify.DispatchResult, error) {
	if err := s.validateInitiate(in); err != nil {
		return "", err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))

	if taken, err := s.users.ExistsByEmail(ctx, email); err != nil {
		return "", fmt.Errorf("registration service: %w", err)
	} else if taken {
		return "", apperror.ErrEmailTaken
	}

	if taken, err := s.users.ExistsByUsername(ctx, in.Username); err != nil {
		return "", fmt.Errorf("registration service: %w", err)
	} else if taken {
		return "", apperror.ErrUsernameTaken
	}

	passHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("registration service: не удалось захешировать пароль: %w", err)
	}

	reg := &models.PendingRegistration{
		Email:        email,
		Username:     in.Username,
		PasswordHash: passHash,
	}

	if err := s.pending.Put(ctx, email, reg); err != nil {
		return "", fmt.Errorf("registration service: %w", err)
	}

	code, err := s.otp.Generate(ctx, email)
	if err != nil {
		return "", fmt.Errorf("registration service: %w", err)
	}

	return s.dispatcher.Send(ctx, email, code, purposeRegistration), nil
}

// Confirm проверяет код и завершает регистрацию.
// Код проверяется и сжигается до остальных проверок: заявка,
// провалившаяся на конфликте, не может быть повторена с тем же кодом —
// процесс начинается заново с Initiate.
func (s *RegistrationService) Confirm(ctx context.Context, email, code string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	valid, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("registration service: %w", err)
	}
	if !valid {
		return nil, apperror.ErrInvalidOtp
	}

	reg, err := s.pending.Get(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrPendingNotFound) {
			// Заявка истекла, не создавалась или уже закоммичена —
			// для вызывающего эти случаи неразличимы.
			return nil, apperror.ErrNoPending
		}
		return nil, fmt.Errorf("registration service: %w", err)
	}

	// Повторная проверка уникальности: между заявкой и подтверждением
	// конкурирующая регистрация могла успеть завершиться. Заявку при
	// конфликте не удаляем — она может принадлежать выигравшей стороне,
	// чей Confirm упрётся в те же проверки.
	if taken, err := s.users.ExistsByUsername(ctx, reg.Username); err != nil {
		return nil, fmt.Errorf("registration service: %w", err)
	} else if taken {
		return nil, apperror.ErrUsernameTaken
	}

	if taken, err := s.users.ExistsByEmail(ctx, reg.Email); err != nil {
		return nil, fmt.Errorf("registration service: %w", err)
	} else if taken {
		return nil, apperror.ErrEmailTaken
	}

	now := time.Now()
	user := &models.User{
		Email:        reg.Email,
		Username:     reg.Username,
		PasswordHash: reg.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Уникальный индекс — финальная защита под предварительной
		// проверкой выше.
		switch {
		case errors.Is(err, repository.ErrEmailConflict):
			return nil, apperror.ErrEmailTaken
		case errors.Is(err, repository.ErrUsernameConflict):
			return nil, apperror.ErrUsernameTaken
		}
		return nil, fmt.Errorf("registration service: %w", err)
	}

	// Удаляем заявку, чтобы исключить повтор с тем же содержимым.
	// Пользователь уже создан, поэтому сбой удаления не фатален:
	// запись истечёт по TTL.
	if err := s.pending.Delete(ctx, email); err != nil {
		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"email": email,
				"error": err.Error(),
			}).Warn("registration service: не удалось удалить заявку после коммита")
		}
	}

	return user, nil
}

// validateInitiate отклоняет заявку с пустыми обязательными полями.
func (s *RegistrationService) validateInitiate(in InitiateInput) error {
	if strings.TrimSpace(in.Email) == "" {
		return apperror.New(apperror.ErrCodeValidation, "email обязателен")
	}
	if strings.TrimSpace(in.Username) == "" {
		return apperror.New(apperror.ErrCodeValidation, "имя пользователя обязательно")
	}
	if strings.TrimSpace(in.Password) == "" {
		return apperror.New(apperror.ErrCodeValidation, "пароль обязателен")
	}
	return nil
}
