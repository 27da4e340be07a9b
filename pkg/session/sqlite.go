package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"
)

// SQLite stores the blob in a single-row table.
type SQLite struct {
	DB *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		dbPath = DefaultPath("session.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("session: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{DB: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (Blob, bool, error) {
	var data string
	err := s.DB.QueryRowContext(ctx, `SELECT data FROM session WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, false, nil
	}
	if err != nil {
		return Blob{}, false, fmt.Errorf("session: query: %w", err)
	}
	var b Blob
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return Blob{}, false, fmt.Errorf("session: parse row: %w", err)
	}
	return b, true, nil
}

func (s *SQLite) Save(ctx context.Context, b Blob) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO session (id, data, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		string(data))
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM session`)
	return err
}

func (s *SQLite) Close() error { return s.DB.Close() }
