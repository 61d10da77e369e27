package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — полезная нагрузка токена внешнего Identity-сервиса.
// Мы не выпускаем токены сами: подпись проверяется открытым ключом RS256,
// опубликованным Identity-сервисом.
type CustomClaims struct {
	UserID int64           `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // Напр. "approvals.decide": true
	jwt.RegisteredClaims
}

// DirectoryUser — запись каталога пользователей Identity-сервиса.
// Используется для обогащения получателей заявки.
type DirectoryUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}
