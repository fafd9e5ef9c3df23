package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Go2NetSentry/internal/chdb"
	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/factory"
	"Go2NetSentry/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

const writeTimeout = 30 * time.Second

// batchConn is the part of driver.Conn the writer uses.
type batchConn interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Close() error
}

// ClickHouseWriter inserts feature rows into ClickHouse.
type ClickHouseWriter struct {
	conn  batchConn
	table string
}

// NewClickHouseWriter connects and ensures the feature table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	table, err := chdb.Table(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	conn, err := chdb.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(ctx, chdb.CreateTableStatement(table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	slog.Info("connected to ClickHouse and ensured table exists", "table", table)
	return &ClickHouseWriter{conn: conn, table: table}, nil
}

func (w *ClickHouseWriter) Name() string {
	return "clickhouse:" + w.table
}

// Write inserts one row per vector in a single batch.
func (w *ClickHouseWriter) Write(fb model.FeatureBatch) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+w.table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, v := range fb.Vectors {
		err := batch.Append(
			fb.Timestamp,
			v.Flow,
			v.Duration,
			v.FwdPackets,
			v.BwdPackets,
			v.ByteRate,
			v.SYNCount,
			v.ACKCount,
			v.PSHCount,
			v.RSTCount,
			v.PacketRate,
			v.MeanPacketLength,
			v.MeanIAT,
			v.Protocol,
			uint8(v.Label),
		)
		if err != nil {
			if abortErr := batch.Abort(); abortErr != nil {
				slog.Warn("failed to abort ClickHouse batch", "table", w.table, "err", abortErr)
			}
			return fmt.Errorf("failed to append row to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	slog.Debug("wrote feature rows to ClickHouse", "rows", len(fb.Vectors), "table", w.table)
	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
