package postgres

import (
	"context"
	"fmt"
)

// UserExists проверяет наличие пользователя в локальной реплике каталога
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to check user: %w", err)
	}
	return exists, nil
}
