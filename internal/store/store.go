package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql" // Register mysql as database/sql driver
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	_ "modernc.org/sqlite"             // Register sqlite as database/sql driver

	"mini-api/internal/config"
)

// Querier is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store wraps a database connection pool and dialect.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// New opens a Store from config.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	dialect := NewDialect(cfg.Driver)

	if cfg.IsSQLite() && cfg.DSNOverride == "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.IsSQLite() {
		// Read-only workload, but keep a single connection so in-memory
		// databases are shared.
		db.SetMaxOpenConns(1)
	} else if cfg.PoolSize > 0 {
		db.SetMaxOpenConns(cfg.PoolSize)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{DB: db, Dialect: dialect}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{DB: db, Dialect: dialect}
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.DB.Close()
}

// Acquire takes a dedicated connection from the pool. The caller must Close it.
func (s *Store) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// Select renders a squirrel builder with the store's placeholder format and
// runs it.
func (s *Store) Select(ctx context.Context, q Querier, b sq.SelectBuilder) ([]map[string]any, error) {
	sqlStr, args, err := b.PlaceholderFormat(s.Dialect.Placeholder()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return QueryRows(ctx, q, sqlStr, args...)
}

// QueryRows executes a query and returns results as []map[string]any.
func QueryRows(ctx context.Context, q Querier, sqlStr string, args ...any) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	dbTypes := make([]string, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i], dbTypes[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return results, nil
}

// normalizeValue converts driver-specific types to JSON-serializable Go types.
// dbType is the upper-cased database type name, possibly empty.
func normalizeValue(v any, dbType string) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		// Text protocol drivers (mysql without args) return numbers as bytes.
		s := string(val)
		switch dbType {
		case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT", "UNSIGNED INT", "UNSIGNED BIGINT":
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL":
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		return s
	case string:
		// SQLite stores timestamps as text.
		if dbType == "DATETIME" || dbType == "TIMESTAMP" {
			if t, err := time.Parse("2006-01-02 15:04:05", val); err == nil {
				return t
			}
		}
		return val
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return val
	}
}
