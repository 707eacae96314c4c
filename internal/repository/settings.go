package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Setting keys. The browser version kept these in localStorage; here they
// live in the settings table.
const (
	settingClientID      = "client_id"
	settingClientSecret  = "client_secret"
	settingSelectedTiers = "selected_tiers"
	settingLastSearch    = "last_search"
)

type SettingsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSettingsRepository(db *sql.DB, logger zerolog.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

func (r *SettingsRepository) get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

func (r *SettingsRepository) set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// Credentials returns the stored API credentials, empty strings when none
// were saved yet.
func (r *SettingsRepository) Credentials(ctx context.Context) (clientID, clientSecret string, err error) {
	clientID, err = r.get(ctx, settingClientID)
	if err != nil {
		return "", "", err
	}
	clientSecret, err = r.get(ctx, settingClientSecret)
	if err != nil {
		return "", "", err
	}
	return clientID, clientSecret, nil
}

func (r *SettingsRepository) SaveCredentials(ctx context.Context, clientID, clientSecret string) error {
	if err := r.set(ctx, settingClientID, clientID); err != nil {
		return err
	}
	return r.set(ctx, settingClientSecret, clientSecret)
}

// SelectedTierIDs returns the saved tier selection. Nil means no preference
// was ever saved, which callers treat as all tiers selected.
func (r *SettingsRepository) SelectedTierIDs(ctx context.Context) ([]string, error) {
	raw, err := r.get(ctx, settingSelectedTiers)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		r.logger.Warn().Err(err).Msg("corrupt tier selection, falling back to all tiers")
		return nil, nil
	}
	return ids, nil
}

func (r *SettingsRepository) SaveSelectedTierIDs(ctx context.Context, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode tier selection: %w", err)
	}
	return r.set(ctx, settingSelectedTiers, string(raw))
}

func (r *SettingsRepository) LastSearch(ctx context.Context) (string, error) {
	return r.get(ctx, settingLastSearch)
}

func (r *SettingsRepository) SaveLastSearch(ctx context.Context, input string) error {
	return r.set(ctx, settingLastSearch, input)
}
