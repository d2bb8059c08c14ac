package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
	"github.com/SiL3nTL00p/shinchan.ai/pkg/logger"
)

type fakeQuerier struct {
	calls   int
	results map[string]duck.Result
	err     error
}

func (f *fakeQuerier) Query(_ context.Context, sql string) (duck.Result, error) {
	f.calls++
	if f.err != nil {
		return duck.Result{}, f.err
	}
	return f.results[sql].Copy(), nil
}

func sampleResult() duck.Result {
	return duck.Result{
		Columns: []string{"transaction_type", "failure_rate_pct"},
		Rows: []map[string]any{
			{"transaction_type": "P2P", "failure_rate_pct": 2.1},
			{"transaction_type": "Bill Payment", "failure_rate_pct": 6.5},
		},
	}
}

func newTestExecutor(t *testing.T, q Querier, cacheSize int) *Executor {
	t.Helper()
	e, err := New(Config{Logger: logger.New(false), DB: q, CacheSize: cacheSize})
	require.NoError(t, err)
	return e
}

func TestExecutor_CacheRoundTrip(t *testing.T) {
	const sql = "SELECT transaction_type, failure_rate_pct FROM transactions"
	q := &fakeQuerier{results: map[string]duck.Result{sql: sampleResult()}}
	e := newTestExecutor(t, q, 10)

	first, err := e.Execute(context.Background(), sql, true)
	require.NoError(t, err)
	require.Equal(t, 1, q.calls)

	second, err := e.Execute(context.Background(), sql, true)
	require.NoError(t, err)
	require.Equal(t, 1, q.calls, "second call must be served from cache")
	require.Equal(t, first.Rows, second.Rows)

	stats := e.Stats()
	require.Zero(t, stats.LastExecutionMs)
	require.Equal(t, 2, stats.LastRows)
	require.Equal(t, 1, stats.CacheSize)
}

func TestExecutor_CachedResultIsACopy(t *testing.T) {
	const sql = "SELECT transaction_type FROM transactions"
	q := &fakeQuerier{results: map[string]duck.Result{sql: sampleResult()}}
	e := newTestExecutor(t, q, 10)

	first, err := e.Execute(context.Background(), sql, true)
	require.NoError(t, err)
	first.Rows[0]["transaction_type"] = "mutated"

	second, err := e.Execute(context.Background(), sql, true)
	require.NoError(t, err)
	require.Equal(t, "P2P", second.Rows[0]["transaction_type"])
}

func TestExecutor_CacheSaturation(t *testing.T) {
	q := &fakeQuerier{results: map[string]duck.Result{
		"SELECT 1": sampleResult(),
		"SELECT 2": sampleResult(),
	}}
	e := newTestExecutor(t, q, 1)

	_, err := e.Execute(context.Background(), "SELECT 1", true)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), "SELECT 2", true)
	require.NoError(t, err)
	require.Equal(t, 1, e.Stats().CacheSize, "full cache must not admit new entries")

	// The uncached query goes back to the engine.
	_, err = e.Execute(context.Background(), "SELECT 2", true)
	require.NoError(t, err)
	require.Equal(t, 3, q.calls)
}

func TestExecutor_BypassCache(t *testing.T) {
	const sql = "SELECT 1"
	q := &fakeQuerier{results: map[string]duck.Result{sql: sampleResult()}}
	e := newTestExecutor(t, q, 10)

	_, err := e.Execute(context.Background(), sql, false)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), sql, false)
	require.NoError(t, err)
	require.Equal(t, 2, q.calls)
	require.Zero(t, e.Stats().CacheSize)
}

func TestExecutor_EngineErrorWrapped(t *testing.T) {
	q := &fakeQuerier{err: errors.New("Binder Error: column not found")}
	e := newTestExecutor(t, q, 10)

	_, err := e.Execute(context.Background(), "SELECT nope FROM transactions", true)
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Contains(t, execErr.Error(), "Binder Error")
}
