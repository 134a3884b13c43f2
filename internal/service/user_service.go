package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/signup-backend/internal/models"
	"github.com/ignatzorin/signup-backend/internal/pkg/apperror"
	"github.com/ignatzorin/signup-backend/internal/repository"
)

// UserService инкапсулирует операции над уже подтверждёнными пользователями.
type UserService struct {
	repo   *repository.UserRepository
	hasher PasswordHasher
}

// UpdateUserInput содержит изменяемые поля пользователя.
// Nil-поле означает «не менять».
type UpdateUserInput struct {
	Email    *string
	Username *string
	Password *string
}

// NewUserService создаёт сервис пользователей.
func NewUserService(repo *repository.UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

// GetByUsername возвращает пользователя по имени.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: %w", err)
	}
	return user, nil
}

// Update частично обновляет пользователя. Пароль всегда перехешируется.
func (s *UserService) Update(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: %w", err)
	}

	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Password != nil {
		passHash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("user service: не удалось захешировать пароль: %w", err)
		}
		user.PasswordHash = passHash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, apperror.ErrUserNotFound
		case errors.Is(err, repository.ErrEmailConflict):
			return nil, apperror.ErrEmailTaken
		case errors.Is(err, repository.ErrUsernameConflict):
			return nil, apperror.ErrUsernameTaken
		}
		return nil, fmt.Errorf("user service: %w", err)
	}

	return user, nil
}

// Delete удаляет пользователя.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrUserNotFound
		}
		return fmt.Errorf("user service: %w", err)
	}
	return nil
}

// IsUsernameAvailable проверяет, свободно ли имя пользователя.
func (s *UserService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("user service: %w", err)
	}
	return !taken, nil
}
