package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"path"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const migrationSuffix = ".up.sql"

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// connectionFailures are matched against error text for drivers that do not
// return typed network errors.
var connectionFailures = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"unexpected EOF",
	"server closed the connection unexpectedly",
	"could not connect",
}

// isConnectionError separates transient connection trouble, worth another
// attempt, from SQL errors that will fail the same way every time.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return slices.ContainsFunc(connectionFailures, func(p string) bool {
		return strings.Contains(msg, p)
	})
}

// RunMigrations applies every *.up.sql file at the root of migrations that
// is not yet recorded in schema_migrations. Files run in name order, each in
// its own transaction. Connection errors are retried; SQL errors are not.
func RunMigrations(ctx context.Context, db TxBeginner, migrations fs.FS, logger *slog.Logger) error {
	return retryStartup(ctx, logger, "run migrations", isConnectionError, func() error {
		return migrate(ctx, db, migrations, logger)
	})
}

func pendingFiles(migrations fs.FS) ([]string, error) {
	names, err := fs.Glob(migrations, "*"+migrationSuffix)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func appliedVersions(ctx context.Context, db DBTX) (map[string]bool, error) {
	rows, err := db.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan schema_migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func migrate(ctx context.Context, db TxBeginner, migrations fs.FS, logger *slog.Logger) error {
	if _, err := db.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	names, err := pendingFiles(migrations)
	if err != nil {
		return err
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		if err := apply(ctx, db, migrations, name); err != nil {
			return err
		}
		logger.Info("migration applied", slog.String("version", strings.TrimSuffix(path.Base(name), migrationSuffix)))
	}
	logger.Debug("schema up to date", slog.Int("applied", len(applied)), slog.Int("available", len(names)))
	return nil
}

func apply(ctx context.Context, db TxBeginner, migrations fs.FS, name string) error {
	script, err := fs.ReadFile(migrations, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, string(script)); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
