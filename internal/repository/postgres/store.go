package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/unihub-backend/internal/infra"
)

// Store — единая точка доступа к PostgreSQL для всех репозиториев проекта.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создает пул соединений по настройкам DatabaseConfig
func NewStore(ctx context.Context, cfg infra.DatabaseConfig) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping проверяет доступность базы при старте
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}
