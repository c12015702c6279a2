package models

import (
	"time"

	"github.com/google/uuid"
)

// Role определяет роль пользователя в маркетплейсе.
type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleEditor  Role = "EDITOR"
	RoleAdmin   Role = "ADMIN"
	// RoleSystem используется планировщиком сверки при автономных действиях.
	RoleSystem Role = "SYSTEM"
)

// User представляет пользователя системы.
type User struct {
	ID           uuid.UUID `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// RegisterRequest - запрос на регистрацию пользователя.
type RegisterRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginRequest - запрос на аутентификацию пользователя.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}
