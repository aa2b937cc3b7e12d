// Package database opens the backing stores (PostgreSQL, Redis) and
// verifies them with a ping before the server starts serving.
package database

import (
	"context"
	"fmt"

	"github.com/corrigolabs/corrigo-backend/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// NewPostgresPool opens a pgx connection pool sized from config and fails
// fast if the database is unreachable.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	pc.MaxConns = cfg.MaxDBConns

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info().Int32("max_conns", cfg.MaxDBConns).Msg("postgres connected")
	return pool, nil
}
