// Package warehouse persists reports into the target database.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/reports"
)

const defaultBatchSize = 500

// Writer replaces report tables. Each Overwrite runs in its own transaction;
// whether a crash mid-write leaves a truncated table depends on the engine's
// support for transactional DDL.
type Writer struct {
	db        *sqlx.DB
	psql      sq.StatementBuilderType
	batchSize int
	logger    *zap.Logger
}

// NewWriter creates a writer. Use sq.Dollar for PostgreSQL and sq.Question for SQLite.
func NewWriter(db *sqlx.DB, placeholder sq.PlaceholderFormat, logger *zap.Logger) *Writer {
	return &Writer{
		db:        db,
		psql:      sq.StatementBuilder.PlaceholderFormat(placeholder),
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// Overwrite drops and recreates the report's table, then inserts every row
func (w *Writer) Overwrite(ctx context.Context, table *reports.Table) error {
	if len(table.Columns) == 0 {
		return fmt.Errorf("report %s has no columns", table.Name)
	}
	name := quote(table.Name)

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", table.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createStatement(table)); err != nil {
		return fmt.Errorf("failed to create %s: %w", table.Name, err)
	}

	columns := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = quote(c.Name)
	}
	for start := 0; start < len(table.Rows); start += w.batchSize {
		end := min(start+w.batchSize, len(table.Rows))
		insert := w.psql.Insert(name).Columns(columns...)
		for _, row := range table.Rows[start:end] {
			insert = insert.Values(row...)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert for %s: %w", table.Name, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table.Name, err)
	}
	w.logger.Info("Report table written",
		zap.String("table", table.Name),
		zap.Int("rows", len(table.Rows)),
	)
	return nil
}

func createStatement(table *reports.Table) string {
	defs := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		defs[i] = quote(c.Name) + " " + sqlType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(table.Name), strings.Join(defs, ", "))
}

func sqlType(t reports.ColumnType) string {
	switch t {
	case reports.Integer:
		return "BIGINT"
	case reports.Double:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
