package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/unred/signal-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqliteWatermarkRepo stores watermarks in a SQLite table
type sqliteWatermarkRepo struct {
	db *sql.DB
}

// NewSQLiteWatermarkRepo creates a new SQLite watermark repository
func NewSQLiteWatermarkRepo(dbPath string) (repo.WatermarkRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps check-and-set atomic
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS watermarks (
			chat_id TEXT PRIMARY KEY,
			message_id INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &sqliteWatermarkRepo{db: db}, nil
}

// Get returns the watermark for a chat, 0 when unknown
func (r *sqliteWatermarkRepo) Get(ctx context.Context, chatID int64) (int64, error) {
	var msgID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT message_id FROM watermarks WHERE chat_id = ?
	`, strconv.FormatInt(chatID, 10)).Scan(&msgID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query watermark: %w", err)
	}
	return msgID, nil
}

// Advance raises the watermark, never lowering it
func (r *sqliteWatermarkRepo) Advance(ctx context.Context, chatID, msgID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watermarks (chat_id, message_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			message_id = excluded.message_id,
			updated_at = excluded.updated_at
		WHERE excluded.message_id > watermarks.message_id
	`, strconv.FormatInt(chatID, 10), msgID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}

// Snapshot lists all watermarks
func (r *sqliteWatermarkRepo) Snapshot(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT chat_id, message_id FROM watermarks`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watermarks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var chatID string
		var msgID int64
		if err := rows.Scan(&chatID, &msgID); err != nil {
			return nil, fmt.Errorf("failed to scan watermark: %w", err)
		}
		out[chatID] = msgID
	}
	return out, rows.Err()
}

// Close closes the database connection
func (r *sqliteWatermarkRepo) Close() error {
	return r.db.Close()
}
