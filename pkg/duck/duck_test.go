package duck

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/logger"
)

const testCSV = `transaction_id,transaction_type,amount_inr,transaction_status,fraud_flag,hour_of_day,is_weekend
TXN001,P2P,120.50,SUCCESS,0,9,0
TXN002,Bill Payment,560.00,FAILED,0,18,0
TXN003,Recharge,99.00,SUCCESS,1,21,1
`

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Logger: logger.New(false),
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func loadTestCSV(t *testing.T, db *DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))
	require.NoError(t, db.LoadCSV(context.Background(), path))
}

func TestDB_LoadAndQuery(t *testing.T) {
	db := newTestDB(t)

	has, err := db.HasTable(context.Background())
	require.NoError(t, err)
	require.False(t, has)

	loadTestCSV(t, db)

	has, err = db.HasTable(context.Background())
	require.NoError(t, err)
	require.True(t, has)

	res, err := db.Query(context.Background(),
		`SELECT transaction_id, transaction_status FROM transactions ORDER BY transaction_id`)
	require.NoError(t, err)
	require.Equal(t, []string{"transaction_id", "transaction_status"}, res.Columns)
	require.Equal(t, 3, res.Count())
	require.Equal(t, "TXN001", res.Rows[0]["transaction_id"])
	require.Equal(t, "FAILED", res.Rows[1]["transaction_status"])
}

func TestDB_QueryError(t *testing.T) {
	db := newTestDB(t)
	loadTestCSV(t, db)

	_, err := db.Query(context.Background(), `SELECT no_such_column FROM transactions`)
	require.Error(t, err)
}

func TestDB_TableStats(t *testing.T) {
	db := newTestDB(t)
	loadTestCSV(t, db)

	rows, cols, err := db.TableStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, rows)
	require.Equal(t, 7, cols)
}

func TestResult_Copy(t *testing.T) {
	res := Result{
		Columns: []string{"a"},
		Rows:    []map[string]any{{"a": int64(1)}},
	}

	dup := res.Copy()
	dup.Rows[0]["a"] = int64(99)
	dup.Columns[0] = "b"

	require.Equal(t, int64(1), res.Rows[0]["a"])
	require.Equal(t, "a", res.Columns[0])
}
