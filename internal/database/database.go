package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// duplicate_database
const codeDuplicateDatabase = "42P04"

// Conn is the subset of *pgx.Conn used to bootstrap the target database
type Conn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureDatabase creates name unless it already exists. It is safe to call on every run.
func EnsureDatabase(ctx context.Context, conn Conn, name string) (created bool, err error) {
	if name == "" {
		return false, fmt.Errorf("database name is empty")
	}

	var exists bool
	if err := conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check database %s: %w", name, err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE takes no bind parameters; the identifier is quoted instead.
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateDatabase {
			return false, nil
		}
		return false, fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return true, nil
}

// Bootstrap connects to the maintenance database and ensures the target exists
func Bootstrap(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) error {
	conn, err := pgx.Connect(ctx, cfg.MaintenanceConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to maintenance database: %w", err)
	}
	defer conn.Close(ctx)

	created, err := EnsureDatabase(ctx, conn, cfg.Database)
	if err != nil {
		return err
	}
	if created {
		logger.Info("Created database", zap.String("database", cfg.Database))
	} else {
		logger.Debug("Database already exists", zap.String("database", cfg.Database))
	}
	return nil
}

// Open connects to the target database through the pgx stdlib driver
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Database, err)
	}
	return db, nil
}

// Migrate applies the embedded migrations. dialect is a goose dialect name
// such as "postgres" or "sqlite3".
func Migrate(db *sql.DB, dialect string, logger *zap.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(zap.NewStdLog(logger))
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
