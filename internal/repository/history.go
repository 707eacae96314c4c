package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type SearchHistoryEntry struct {
	ID            string    `json:"id"`
	SearchInput   string    `json:"searchInput"`
	CharacterName string    `json:"characterName"`
	Server        string    `json:"server"`
	ResultCount   int       `json:"resultCount"`
	DurationMS    int64     `json:"durationMs"`
	CreatedAt     time.Time `json:"createdAt"`
}

type HistoryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewHistoryRepository(db *sql.DB, logger zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

func (r *HistoryRepository) Record(ctx context.Context, entry SearchHistoryEntry) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate history id: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO search_history (id, search_input, character_name, server, result_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, entry.SearchInput, entry.CharacterName, entry.Server,
		entry.ResultCount, entry.DurationMS, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}

	r.logger.Debug().Str("id", id).Str("character", entry.CharacterName).Msg("search recorded")
	return nil
}

func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]SearchHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, search_input, character_name, server, result_count, duration_ms, created_at
		FROM search_history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	defer rows.Close()

	var entries []SearchHistoryEntry
	for rows.Next() {
		var e SearchHistoryEntry
		if err := rows.Scan(&e.ID, &e.SearchInput, &e.CharacterName, &e.Server,
			&e.ResultCount, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
