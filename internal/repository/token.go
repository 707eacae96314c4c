package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TokenRepository caches the OAuth access token so restarts do not burn a
// token request. Single row, last write wins.
type TokenRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTokenRepository(db *sql.DB, logger zerolog.Logger) *TokenRepository {
	return &TokenRepository{db: db, logger: logger}
}

func (r *TokenRepository) Token(ctx context.Context) (string, time.Time, error) {
	var token string
	var expiry time.Time
	err := r.db.QueryRowContext(ctx,
		"SELECT access_token, expires_at FROM oauth_tokens WHERE id = 1").Scan(&token, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read cached token: %w", err)
	}
	return token, expiry, nil
}

func (r *TokenRepository) SaveToken(ctx context.Context, token string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (id, access_token, expires_at, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET access_token = excluded.access_token,
			expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		token, expiry, time.Now())
	if err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	r.logger.Debug().Time("expires_at", expiry).Msg("token cached")
	return nil
}
