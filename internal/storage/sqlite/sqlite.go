// Package sqlite persists the session in a single-file database, the closest
// match to an extension's local storage area.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
	"github.com/FurmanovVitaliy/logger"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, key)
)`

type Storage struct {
	db        *sql.DB
	log       *slog.Logger
	namespace string
}

// New opens (or creates) the database at path and ensures the schema exists.
func New(ctx context.Context, log *slog.Logger, path, namespace string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// sqlite serialises writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, log: log, namespace: namespace}, nil
}

func (s *Storage) Save(ctx context.Context, c models.Credentials) error {
	const op = "storage.sqlite.Save"
	log := s.log.With(logger.StringAttr("operation", op))

	values, err := storage.Encode(c)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, key := range storage.Keys {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (namespace, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			s.namespace, key, values[key])
		if err != nil {
			log.Error("failed to save credential entry", logger.StringAttr("key", key), logger.ErrAttr(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Load(ctx context.Context) (models.Credentials, error) {
	const op = "storage.sqlite.Load"

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials WHERE namespace = ?`, s.namespace)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	values := make(map[string]string, len(storage.Keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}

	c, err := storage.Decode(values)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	const op = "storage.sqlite.Clear"

	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
