package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает подтверждённого пользователя.
// Email и username уникальны на уровне базы — это финальная защита
// от гонки двух одновременных регистраций.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PendingRegistration хранит данные неподтверждённой регистрации
// между отправкой кода и его подтверждением. Пароль здесь всегда
// уже захеширован, сырой пароль в Redis не попадает.
type PendingRegistration struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// OtpEntry описывает выданный одноразовый код.
type OtpEntry struct {
	Email    string    `json:"email"`
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}
