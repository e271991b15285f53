package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inkwell/internal/domain/repositories"
)

// RepositoryConfig holds the shared pieces every repository needs.
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds environment-prefixed table names so dev, test and
// prod schemas can share one database.
type TableNames struct {
	Stories    string
	Books      string
	Chapters   string
	Sourcebook string
	Sessions   string
}

// NewTableNames creates table names with the given prefix.
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Stories:    fmt.Sprintf("%sstories", prefix),
		Books:      fmt.Sprintf("%sbooks", prefix),
		Chapters:   fmt.Sprintf("%schapters", prefix),
		Sourcebook: fmt.Sprintf("%ssourcebook_entries", prefix),
		Sessions:   fmt.Sprintf("%schat_sessions", prefix),
	}
}

// CreateConnectionPool builds a pgx pool and verifies connectivity.
//
// When the URL points at a transaction pooler (port 6543, the Supabase
// PgBouncer convention), the default prepared-statement mode breaks
// with "prepared statement already exists". QueryExecModeCacheDescribe
// keeps the extended protocol (needed for JSONB encoding of Go values)
// without creating named prepared statements, so it works through the
// pooler. An explicit default_query_exec_mode in the URL wins over the
// auto-detection.
//
// Interpolating table prefixes with fmt.Sprintf is safe alongside
// statement caching: the SQL text is fixed before it reaches the
// server, so each prefix gets its own cached statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for transaction pooler", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction bound to the context when one
// exists, otherwise the pool. Repositories call this on every query so
// they participate in transactions transparently.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
