package postgre

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
	"github.com/FurmanovVitaliy/extension-auth/pkg/clients/postgre"
	"github.com/FurmanovVitaliy/logger"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

const uniqueViolation = "23505"

// Storage keeps the persisted session in the credentials table and the local
// provider's accounts in the users table.
type Storage struct {
	client    postgre.PostgresClient
	log       *slog.Logger
	namespace string
}

func NewStorage(logger *slog.Logger, client postgre.PostgresClient, namespace string) *Storage {
	return &Storage{client: client, log: logger, namespace: namespace}
}

func formatQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

func sqlError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: SQL Error: %s, Detail: %s, Where: %s, Code: %s", op, pgErr.Message, pgErr.Detail, pgErr.Where, pgErr.Code)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Save replaces every stored entry of the namespace in one transaction.
func (s *Storage) Save(ctx context.Context, c models.Credentials) (err error) {
	const op = "storage.postgre.Save"
	log := s.log.With(logger.StringAttr("operation", op))

	values, err := storage.Encode(c)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.client.Begin(ctx)
	if err != nil {
		log.Error("failed to begin transaction", logger.ErrAttr(err))
		return sqlError(op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	q := `
		INSERT INTO credentials (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	s.log.Debug("SQL save query:", slog.String("query", formatQuery(q)))
	for _, key := range storage.Keys {
		if _, err = tx.Exec(ctx, q, s.namespace, key, values[key]); err != nil {
			log.Error("failed to save credential entry", logger.StringAttr("key", key), logger.ErrAttr(err))
			return sqlError(op, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return sqlError(op, err)
	}
	return nil
}

func (s *Storage) Load(ctx context.Context) (models.Credentials, error) {
	const op = "storage.postgre.Load"

	q := `SELECT key, value FROM credentials WHERE namespace = $1`

	s.log.Debug("SQL load query:", slog.String("query", formatQuery(q)))
	rows, err := s.client.Query(ctx, q, s.namespace)
	if err != nil {
		return models.Credentials{}, sqlError(op, err)
	}
	defer rows.Close()

	values := make(map[string]string, len(storage.Keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Credentials{}, sqlError(op, err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.Credentials{}, sqlError(op, err)
	}

	c, err := storage.Decode(values)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	const op = "storage.postgre.Clear"

	q := `DELETE FROM credentials WHERE namespace = $1`

	s.log.Debug("SQL clear query:", slog.String("query", formatQuery(q)))
	if _, err := s.client.Exec(ctx, q, s.namespace); err != nil {
		return sqlError(op, err)
	}
	return nil
}

func (s *Storage) Register(ctx context.Context, email, username string, passHash []byte) (int64, error) {
	const op = "storage.postgre.Register"
	var id int64

	q := `INSERT INTO users (email, username, pass_hash) VALUES ($1, $2, $3) RETURNING id`

	s.log.Debug("SQL register query:", slog.String("query", formatQuery(q)))
	if err := s.client.QueryRow(ctx, q, email, username, passHash).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if strings.Contains(pgErr.ConstraintName, "username") {
				return 0, storage.ErrUsernameAlreadyExists
			}
			return 0, storage.ErrEmailAlreadyExists
		}
		return 0, sqlError(op, err)
	}
	return id, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.postgre.UserByEmail"

	q := `SELECT id, email, username, pass_hash, avatar_url, role, created_at FROM users WHERE lower(email) = lower($1)`

	s.log.Debug("SQL user query:", slog.String("query", formatQuery(q)))
	return s.scanAccount(op, s.client.QueryRow(ctx, q, email))
}

func (s *Storage) UserByID(ctx context.Context, id int64) (models.Account, error) {
	const op = "storage.postgre.UserByID"

	q := `SELECT id, email, username, pass_hash, avatar_url, role, created_at FROM users WHERE id = $1`

	s.log.Debug("SQL user query:", slog.String("query", formatQuery(q)))
	return s.scanAccount(op, s.client.QueryRow(ctx, q, id))
}

func (s *Storage) scanAccount(op string, row pgx.Row) (models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PassHash, &a.AvatarURL, &a.Role, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrUserNotFound
		}
		return models.Account{}, sqlError(op, err)
	}
	return a, nil
}
