package duck

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// expectedColumns is the transactions schema the pipeline is prompted
// against. Loading only warns on drift; the translator prompt is the
// contract the LLM sees.
var expectedColumns = []string{
	"transaction_id",
	"timestamp",
	"transaction_type",
	"merchant_category",
	"amount_inr",
	"transaction_status",
	"sender_age_group",
	"receiver_age_group",
	"sender_state",
	"sender_bank",
	"receiver_bank",
	"device_type",
	"network_type",
	"fraud_flag",
	"hour_of_day",
	"day_of_week",
	"is_weekend",
}

// columnRenames maps known CSV header variants to the internal names.
var columnRenames = map[string]string{
	"transaction id":   "transaction_id",
	"transaction type": "transaction_type",
	"amount (INR)":     "amount_inr",
}

// LoadCSV bootstraps the transactions table from a CSV file using
// DuckDB's read_csv_auto, then normalizes known header variants and
// creates best-effort indexes on the hot filter columns.
func (d *DB) LoadCSV(ctx context.Context, csvPath string) error {
	if _, err := os.Stat(csvPath); err != nil {
		return fmt.Errorf("dataset not found: %w", err)
	}

	d.log.Info("duck: loading dataset", "path", csvPath)

	stmt := fmt.Sprintf(
		`CREATE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true, sample_size=10000)`,
		TableName, strings.ReplaceAll(csvPath, "'", "''"))
	if err := d.exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}

	loaded, err := d.columnNames(ctx)
	if err != nil {
		return err
	}

	for csvName, internal := range columnRenames {
		if loaded[strings.ToLower(csvName)] && !loaded[internal] {
			rename := fmt.Sprintf(`ALTER TABLE %s RENAME COLUMN "%s" TO %s`, TableName, csvName, internal)
			if err := d.exec(ctx, rename); err != nil {
				return fmt.Errorf("failed to rename column %q: %w", csvName, err)
			}
			d.log.Info("duck: renamed column", "from", csvName, "to", internal)
		}
	}

	for _, col := range []string{"transaction_status", "transaction_type", "fraud_flag"} {
		idx := fmt.Sprintf(`CREATE INDEX idx_%s ON %s(%s)`, col, TableName, col)
		if err := d.exec(ctx, idx); err != nil {
			d.log.Warn("duck: could not create index", "column", col, "error", err)
		}
	}

	loaded, err = d.columnNames(ctx)
	if err != nil {
		return err
	}
	var missing []string
	for _, col := range expectedColumns {
		if !loaded[strings.ToLower(col)] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		d.log.Warn("duck: dataset is missing expected columns", "columns", strings.Join(missing, ","))
	}

	rowCount, _, err := d.TableStats(ctx)
	if err != nil {
		return err
	}
	d.log.Info("duck: dataset loaded", "rows", rowCount)
	return nil
}

// HasTable reports whether the transactions table already exists, so a
// file-backed database is not re-loaded on restart.
func (d *DB) HasTable(ctx context.Context) (bool, error) {
	res, err := d.Query(ctx, fmt.Sprintf(
		`SELECT COUNT(*) AS n FROM information_schema.tables WHERE table_name = '%s'`, TableName))
	if err != nil {
		return false, fmt.Errorf("failed to check table: %w", err)
	}
	return !res.Empty() && asInt64(res.Rows[0]["n"]) > 0, nil
}

func (d *DB) columnNames(ctx context.Context) (map[string]bool, error) {
	res, err := d.Query(ctx, fmt.Sprintf(
		`SELECT column_name FROM information_schema.columns WHERE table_name = '%s'`, TableName))
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	names := make(map[string]bool, res.Count())
	for _, row := range res.Rows {
		if s, ok := row["column_name"].(string); ok {
			names[strings.ToLower(s)] = true
		}
	}
	return names, nil
}
