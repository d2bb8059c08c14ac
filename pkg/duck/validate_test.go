package duck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{
			name:  "plain select",
			query: "SELECT transaction_type, COUNT(*) FROM transactions GROUP BY transaction_type",
			want:  true,
		},
		{
			name:  "cte",
			query: "WITH failed AS (SELECT * FROM transactions WHERE transaction_status = 'FAILED') SELECT COUNT(*) FROM failed",
			want:  true,
		},
		{
			name:  "leading whitespace",
			query: "\n  SELECT COUNT(*) FROM transactions",
			want:  true,
		},
		{
			name:  "empty",
			query: "   ",
			want:  false,
		},
		{
			name:  "drop table",
			query: "DROP TABLE transactions",
			want:  false,
		},
		{
			name:  "delete",
			query: "DELETE FROM transactions WHERE fraud_flag = 1",
			want:  false,
		},
		{
			name:  "select hiding an update",
			query: "SELECT 1; UPDATE transactions SET fraud_flag = 0",
			want:  false,
		},
		{
			name:  "lowercase select hiding a lowercase drop",
			query: "select 1 from transactions; drop table transactions",
			want:  false,
		},
		{
			name:  "mixed-case delete",
			query: "Delete From transactions",
			want:  false,
		},
		{
			name:  "lowercase select is allowed",
			query: "select count(*) from transactions",
			want:  true,
		},
		{
			name:  "keyword inside identifier is allowed",
			query: "SELECT created_at, updated_at FROM transactions",
			want:  true,
		},
		{
			name:  "does not start with select",
			query: "EXPLAIN SELECT COUNT(*) FROM transactions",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ValidateQuery(tt.query))
		})
	}
}
