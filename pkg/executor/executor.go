// Package executor runs validated SQL against the embedded engine
// through a bounded result cache and records execution statistics.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/metrics"
)

const defaultCacheSize = 50

// ExecutionError wraps an engine-level failure (syntax, type mismatch,
// timeout). Execution is never retried here; retry responsibility lives
// at the translation stage only.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Querier is the embedded engine boundary.
type Querier interface {
	Query(ctx context.Context, sql string) (duck.Result, error)
}

type Config struct {
	Logger    *slog.Logger
	DB        Querier
	CacheSize int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.DB == nil {
		return fmt.Errorf("database is required")
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaultCacheSize
	}
	return nil
}

// Stats is a snapshot of the executor's cumulative statistics.
type Stats struct {
	LastExecutionMs float64 `json:"last_execution_time_ms"`
	LastRows        int     `json:"last_rows_returned"`
	CacheSize       int     `json:"cache_size"`
	CacheCapacity   int     `json:"cache_capacity"`
}

// Executor executes SQL and serves repeated queries from the cache.
type Executor struct {
	log   *slog.Logger
	db    Querier
	cache *ResultCache

	mu         sync.Mutex
	lastMs     float64
	lastRows   int
}

func New(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate executor config: %w", err)
	}
	return &Executor{
		log:   cfg.Logger,
		db:    cfg.DB,
		cache: NewResultCache(cfg.CacheSize),
	}, nil
}

// Execute runs a pre-validated query. Cache hits return a copy and
// record zero elapsed time; misses run against the engine, record wall
// clock latency and row count, and populate the cache while it has
// capacity.
func (e *Executor) Execute(ctx context.Context, sql string, useCache bool) (duck.Result, error) {
	if useCache {
		if cached, ok := e.cache.Get(sql); ok {
			e.log.Debug("executor: returning cached result", "rows", cached.Count())
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			e.record(0, cached.Count())
			return cached, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	e.log.Info("executor: executing sql", "sql", truncate(sql, 150))

	start := time.Now()
	res, err := e.db.Query(ctx, sql)
	elapsed := time.Since(start)
	if err != nil {
		e.record(float64(elapsed.Microseconds())/1000, 0)
		e.log.Error("executor: engine error", "error", err, "sql", truncate(sql, 150))
		return duck.Result{}, &ExecutionError{Err: err}
	}

	metrics.QueryDuration.Observe(elapsed.Seconds())
	e.record(float64(elapsed.Microseconds())/1000, res.Count())
	e.log.Info("executor: query complete", "rows", res.Count(), "elapsed", elapsed)

	if useCache {
		e.cache.Put(sql, res)
	}
	return res, nil
}

// Stats returns the latest execution statistics and cache occupancy.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		LastExecutionMs: e.lastMs,
		LastRows:        e.lastRows,
		CacheSize:       e.cache.Len(),
		CacheCapacity:   e.cache.Cap(),
	}
}

func (e *Executor) record(ms float64, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastMs = ms
	e.lastRows = rows
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
