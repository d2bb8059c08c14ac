// Package duck manages the embedded DuckDB instance that holds the
// transactions dataset: opening the database, serialized query execution
// over a single pinned connection, CSV bootstrapping, and the read-only
// safety gate applied to generated SQL.
package duck

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// TableName is the single analytical table every query runs against.
const TableName = "transactions"

const defaultQueryTimeout = 30 * time.Second

type Config struct {
	Logger *slog.Logger

	// Path is the database file path. Empty means in-memory.
	Path string

	// QueryTimeout bounds each statement. Zero means the default.
	QueryTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	return nil
}

// DB wraps a single DuckDB connection. DuckDB exposes one logical
// connection handle here, so all statement execution is serialized
// behind a mutex.
type DB struct {
	log  *slog.Logger
	cfg  Config
	db   *sql.DB
	conn *sql.Conn
	mu   sync.Mutex
}

// Open opens (or creates) the database and pins a connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate duck config: %w", err)
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to pin connection: %w", err)
	}

	return &DB{
		log:  cfg.Logger,
		cfg:  cfg,
		db:   db,
		conn: conn,
	}, nil
}

// Query executes a single read statement and scans the full result.
// []byte values are normalized to string so rows are JSON-friendly.
func (d *DB) Query(ctx context.Context, query string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.QueryTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.conn.QueryContext(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get columns: %w", err)
	}

	var resultRows []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return Result{}, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = values[i]
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("error iterating rows: %w", err)
	}

	return Result{Columns: columns, Rows: resultRows}, nil
}

// TableStats returns the row and column counts of the transactions table.
func (d *DB) TableStats(ctx context.Context) (rows int, cols int, err error) {
	res, err := d.Query(ctx, fmt.Sprintf(`SELECT COUNT(*) AS n FROM %s`, TableName))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count rows: %w", err)
	}
	if !res.Empty() {
		rows = int(asInt64(res.Rows[0]["n"]))
	}

	res, err = d.Query(ctx, fmt.Sprintf(
		`SELECT COUNT(*) AS n FROM information_schema.columns WHERE table_name = '%s'`, TableName))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count columns: %w", err)
	}
	if !res.Empty() {
		cols = int(asInt64(res.Rows[0]["n"]))
	}
	return rows, cols, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// exec runs a write statement. Only the bootstrap path uses it; the
// query surface handed to the pipeline is read-only.
func (d *DB) exec(ctx context.Context, stmt string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.QueryTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.conn.ExecContext(ctx, stmt, args...)
	return err
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.conn.Close(); err != nil {
		d.db.Close()
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return d.db.Close()
}
