// Package chdb holds the ClickHouse connection and schema shared by the feature
// writer and the feature querier.
package chdb

import (
	"context"
	"fmt"
	"regexp"

	"Go2NetSentry/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// DefaultTable is used when the configuration names no table.
const DefaultTable = "flow_features"

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %s (
    Timestamp        DateTime,
    Flow             String,
    Duration         Float64,
    FwdPackets       UInt64,
    BwdPackets       UInt64,
    ByteRate         Float64,
    SYNCount         UInt64,
    ACKCount         UInt64,
    PSHCount         UInt64,
    RSTCount         UInt64,
    PacketRate       Float64,
    MeanPacketLength Float64,
    MeanIAT          Float64,
    Protocol         UInt8,
    Label            UInt8
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, Flow);
`

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Table returns the configured table name, validated for use in SQL text.
func Table(cfg config.ClickHouseConfig) (string, error) {
	name := cfg.Table
	if name == "" {
		name = DefaultTable
	}
	if !tableName.MatchString(name) {
		return "", fmt.Errorf("invalid clickhouse table name '%s'", name)
	}
	return name, nil
}

// CreateTableStatement returns the DDL for table.
func CreateTableStatement(table string) string {
	return fmt.Sprintf(createTableStatement, table)
}

// Connect opens and pings a ClickHouse connection.
func Connect(ctx context.Context, cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}
