package store

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/signup-backend/internal/models"
)

const otpKeyPrefix = "otp:"

// OtpStore выдаёт и проверяет одноразовые коды подтверждения.
// На один email живёт не более одного кода; любая попытка проверки
// сжигает код независимо от результата.
type OtpStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewOtpStore создаёт хранилище кодов с заданным временем жизни.
func NewOtpStore(client *redis.Client, ttl time.Duration) *OtpStore {
	return &OtpStore{redis: client, ttl: ttl}
}

func (s *OtpStore) key(email string) string {
	return otpKeyPrefix + email
}

// Generate выдаёт новый шестизначный код и сохраняет его с TTL.
// Существующий код для этого email перезаписывается: живым считается
// только последний выданный.
func (s *OtpStore) Generate(ctx context.Context, email string) (string, error) {
	code, err := generateNumericCode()
	if err != nil {
		return "", fmt.Errorf("otp store: не удалось сгенерировать код: %w", err)
	}

	entry := models.OtpEntry{
		Email:    email,
		Code:     code,
		IssuedAt: time.Now(),
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("otp store: не удалось сериализовать код: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(email), encoded, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("otp store: не удалось сохранить код: %w", err)
	}

	return code, nil
}

// Verify проверяет код и удаляет запись независимо от результата.
// GETDEL атомарен, поэтому из двух конкурентных проверок живой код
// увидит максимум одна. Отсутствие, истечение TTL и уже сожжённый код
// неразличимы для вызывающего — все три случая дают false.
func (s *OtpStore) Verify(ctx context.Context, email, candidate string) (bool, error) {
	data, err := s.redis.GetDel(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("otp store: не удалось прочитать код: %w", err)
	}

	var entry models.OtpEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return false, fmt.Errorf("otp store: повреждённая запись кода: %w", err)
	}

	return subtle.ConstantTimeCompare([]byte(entry.Code), []byte(candidate)) == 1, nil
}

// generateNumericCode возвращает криптографически случайный код
// в диапазоне 100000–999999 (без ведущих нулей).
func generateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
