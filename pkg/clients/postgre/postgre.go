package postgre

import (
	"context"
	"fmt"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/utils"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type PostgresClient interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// DSN builds the connection string shared by the client and the migrator.
func DSN(host, port, username, password, database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", username, password, host, port, database)
}

func NewPostgresClient(ctx context.Context, maxAttempts int, host, port, username, password, database string) (pool *pgxpool.Pool, version string, err error) {
	dsn := DSN(host, port, username, password, database)

	err = utils.DoWithRetryContext(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		pool, err = pgxpool.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		if err = pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}
		return nil
	}, maxAttempts, 5*time.Second)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to Postgres after %d attempts: %w", maxAttempts, err)
	}

	if err = pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		pool.Close()
		return nil, "", fmt.Errorf("failed to get Postgres version: %w", err)
	}

	return pool, version, nil
}
