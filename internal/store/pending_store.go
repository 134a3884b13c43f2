package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/signup-backend/internal/models"
)

const pendingKeyPrefix = "tmp:user:"

// ErrPendingNotFound возвращается, когда заявка не найдена или истёк её TTL.
var ErrPendingNotFound = errors.New("pending registration not found")

// PendingRegistrationStore хранит неподтверждённые заявки на регистрацию.
// Запись живёт независимо от кода подтверждения: перед коммитом
// проверяются обе.
type PendingRegistrationStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewPendingRegistrationStore создаёт хранилище заявок с заданным TTL.
func NewPendingRegistrationStore(client *redis.Client, ttl time.Duration) *PendingRegistrationStore {
	return &PendingRegistrationStore{redis: client, ttl: ttl}
}

func (s *PendingRegistrationStore) key(email string) string {
	return pendingKeyPrefix + email
}

// Put сохраняет заявку, перезаписывая предыдущую для того же email.
// Перезапись перезапускает TTL — повторный запрос кода начинает
// процесс заново.
func (s *PendingRegistrationStore) Put(ctx context.Context, email string, reg *models.PendingRegistration) error {
	encoded, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("pending store: не удалось сериализовать заявку: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(email), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("pending store: не удалось сохранить заявку: %w", err)
	}

	return nil
}

// Get возвращает заявку или ErrPendingNotFound, если она не создавалась
// либо истёк TTL. Ошибка декодирования — это повреждение данных,
// она не сводится к «не найдено».
func (s *PendingRegistrationStore) Get(ctx context.Context, email string) (*models.PendingRegistration, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("pending store: не удалось прочитать заявку: %w", err)
	}

	var reg models.PendingRegistration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("pending store: повреждённая запись заявки: %w", err)
	}

	return &reg, nil
}

// Delete удаляет заявку. Идемпотентен: отсутствие записи не ошибка.
func (s *PendingRegistrationStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("pending store: не удалось удалить заявку: %w", err)
	}
	return nil
}
