// Package store reads outlook windows from and writes forecasts to
// ClickHouse.
//
// Outlook tables use the ch-go native protocol with columnar blocks.
// Forecast rows go through clickhouse-go/v2 batches.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ki7mt-kp-forecast/internal/common"
)

const outlookDDL = `CREATE TABLE IF NOT EXISTS %s (
    issued_at   DateTime,
    date        Date32,
    f107        Float32,
    ap          Float32,
    kp          Float32,
    source_file String
) ENGINE = ReplacingMergeTree
ORDER BY (issued_at, date)`

const forecastDDL = `CREATE TABLE IF NOT EXISTS %s (
    issued_at DateTime,
    run_at    DateTime,
    mode      LowCardinality(String),
    day       UInt8,
    date      Date32,
    kp        Nullable(Float32),
    ap        Nullable(Float32),
    f107      Nullable(Float32)
) ENGINE = MergeTree
ORDER BY (run_at, day)`

// OutlookDDL returns the CREATE TABLE statement for the outlook table.
func OutlookDDL(table string) string { return fmt.Sprintf(outlookDDL, table) }

// ForecastDDL returns the CREATE TABLE statement for the forecast table.
func ForecastDDL(table string) string { return fmt.Sprintf(forecastDDL, table) }

// Doer runs one native query. *ch.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, q ch.Query) error
}

// DialNative connects with ch-go for outlook reads and writes.
func DialNative(ctx context.Context, cfg *common.Config) (*ch.Client, error) {
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     cfg.ClickHouseAddr(),
		Database:    cfg.ClickHouseDatabase,
		User:        cfg.ClickHouseUser,
		Password:    cfg.ClickHousePassword,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse native connection failed: %w", err)
	}
	return conn, nil
}

// OpenForecastConn opens a clickhouse-go connection for forecast writes.
func OpenForecastConn(ctx context.Context, cfg *common.Config) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr()},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connection failed: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping failed: %w", err)
	}
	return conn, nil
}
