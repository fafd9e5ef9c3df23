package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Go2NetSentry/internal/chdb"
	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// MaxLimit caps the number of rows a single query returns.
const MaxLimit = 1000

// Filter narrows a feature query. Zero values mean "no constraint".
type Filter struct {
	Since time.Time
	Label *model.Label
	Flow  string
	Limit int
}

// FeatureRow is a stored feature vector with its window timestamp.
type FeatureRow struct {
	Timestamp time.Time `json:"timestamp"`
	model.FeatureVector
}

// Querier defines the interface for querying stored feature rows.
type Querier interface {
	RecentFeatures(ctx context.Context, f Filter) ([]FeatureRow, error)
	Close() error
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn  driver.Conn
	table string
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(ctx context.Context, cfg config.ClickHouseConfig) (Querier, error) {
	table, err := chdb.Table(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := chdb.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn, table: table}, nil
}

// BuildQuery renders the SQL and arguments for f against table.
func BuildQuery(table string, f Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT Timestamp, Flow, Duration, FwdPackets, BwdPackets, ByteRate,
		SYNCount, ACKCount, PSHCount, RSTCount, PacketRate, MeanPacketLength, MeanIAT,
		Protocol, Label FROM `)
	b.WriteString(table)

	var where []string
	var args []any
	if !f.Since.IsZero() {
		where = append(where, "Timestamp >= ?")
		args = append(args, f.Since)
	}
	if f.Label != nil {
		where = append(where, "Label = ?")
		args = append(args, uint8(*f.Label))
	}
	if f.Flow != "" {
		where = append(where, "Flow = ?")
		args = append(args, f.Flow)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	limit := f.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	fmt.Fprintf(&b, " ORDER BY Timestamp DESC LIMIT %d", limit)
	return b.String(), args
}

// RecentFeatures returns the newest rows matching f.
func (q *clickhouseQuerier) RecentFeatures(ctx context.Context, f Filter) ([]FeatureRow, error) {
	sql, args := BuildQuery(q.table, f)
	rows, err := q.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []FeatureRow
	for rows.Next() {
		var r FeatureRow
		var label uint8
		if err := rows.Scan(&r.Timestamp, &r.Flow, &r.Duration, &r.FwdPackets, &r.BwdPackets, &r.ByteRate,
			&r.SYNCount, &r.ACKCount, &r.PSHCount, &r.RSTCount, &r.PacketRate, &r.MeanPacketLength, &r.MeanIAT,
			&r.Protocol, &label); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		r.Label = model.Label(label)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feature rows: %w", err)
	}
	return out, nil
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}
