package store

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/forecast"
)

// BatchPreparer opens insert batches. driver.Conn satisfies it.
type BatchPreparer interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Exec(ctx context.Context, query string, args ...any) error
}

// ForecastWriter stores one row per forecast day.
type ForecastWriter struct {
	conn  BatchPreparer
	table string
}

func NewForecastWriter(conn BatchPreparer, table string) *ForecastWriter {
	return &ForecastWriter{conn: conn, table: table}
}

// EnsureTable creates the forecast table if needed.
func (w *ForecastWriter) EnsureTable(ctx context.Context) error {
	return w.conn.Exec(ctx, ForecastDDL(w.table))
}

// Write inserts run as a single batch. Missing values become NULL.
func (w *ForecastWriter) Write(ctx context.Context, run *forecast.Run) error {
	rows := forecastRows(run)
	if len(rows) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.table))
	if err != nil {
		return fmt.Errorf("prepare forecast batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			batch.Abort()
			return fmt.Errorf("append forecast day %v: %w", row[3], err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send forecast batch: %w", err)
	}
	return nil
}

// forecastRows lays run out in table column order.
func forecastRows(run *forecast.Run) [][]any {
	days := run.Days()
	rows := make([][]any, len(days))
	for i, d := range days {
		rows[i] = []any{
			run.IssuedAt.UTC(),
			run.RunAt.UTC(),
			run.Mode,
			uint8(d.Index),
			d.Date,
			float32Ptr(d.Kp),
			float32Ptr(d.Ap),
			float32Ptr(d.F107),
		}
	}
	return rows
}

func float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}
