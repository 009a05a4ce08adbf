package store

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect abstracts database-specific SQL generation and metadata lookups.
type Dialect interface {
	// Name returns "postgres", "sqlite" or "mysql".
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	// Placeholder returns the squirrel placeholder format for bound values.
	Placeholder() sq.PlaceholderFormat

	// QuoteIdentifier quotes a single identifier (table or column name).
	QuoteIdentifier(name string) string

	// ListTables returns base table names (no views, no system tables), sorted.
	ListTables(ctx context.Context, db *sql.DB) ([]string, error)

	// GetColumns returns the column names of a table in ordinal order.
	GetColumns(ctx context.Context, db *sql.DB, tableName string) ([]string, error)
}

// NewDialect creates a Dialect for the given driver name.
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	case "mysql":
		return &MySQLDialect{}
	default:
		return &PostgresDialect{}
	}
}

// Qualify quotes and joins a table and column: "t"."c".
func Qualify(d Dialect, table, column string) string {
	return d.QuoteIdentifier(table) + "." + d.QuoteIdentifier(column)
}

func quoteWith(name, quote string) string {
	return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
