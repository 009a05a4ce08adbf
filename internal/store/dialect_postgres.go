package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string                      { return "postgres" }
func (d *PostgresDialect) DriverName() string                { return "pgx" }
func (d *PostgresDialect) Placeholder() sq.PlaceholderFormat { return sq.Dollar }

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`)
}

func (d *PostgresDialect) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename`)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (d *PostgresDialect) GetColumns(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_name = $1 AND table_schema = 'public' ORDER BY ordinal_position`,
		tableName,
	)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}
