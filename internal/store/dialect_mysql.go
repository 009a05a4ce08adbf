package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// MySQLDialect implements Dialect for MySQL and TiDB via go-sql-driver/mysql.
type MySQLDialect struct{}

func (d *MySQLDialect) Name() string                      { return "mysql" }
func (d *MySQLDialect) DriverName() string                { return "mysql" }
func (d *MySQLDialect) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (d *MySQLDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, "`")
}

func (d *MySQLDialect) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (d *MySQLDialect) GetColumns(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position`,
		tableName,
	)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}
