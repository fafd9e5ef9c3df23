package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBatch implements the driver.Batch methods the writer calls.
type recordingBatch struct {
	driver.Batch
	appendErr error
	rows      int
	aborted   bool
	sent      bool
}

func (b *recordingBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.rows++
	return nil
}

func (b *recordingBatch) Abort() error {
	b.aborted = true
	return nil
}

func (b *recordingBatch) Send() error {
	b.sent = true
	return nil
}

type batchConnStub struct {
	batch *recordingBatch
	query string
}

func (c *batchConnStub) PrepareBatch(_ context.Context, query string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	c.query = query
	return c.batch, nil
}

func (c *batchConnStub) Close() error { return nil }

func TestClickHouseWriterSendsBatch(t *testing.T) {
	conn := &batchConnStub{batch: &recordingBatch{}}
	w := &ClickHouseWriter{conn: conn, table: "features"}

	require.NoError(t, w.Write(sampleBatch(time.Now())))
	assert.Equal(t, "INSERT INTO features", conn.query)
	assert.Equal(t, 2, conn.batch.rows)
	assert.True(t, conn.batch.sent)
	assert.False(t, conn.batch.aborted)
	assert.Equal(t, "clickhouse:features", w.Name())
}

func TestClickHouseWriterAbortsOnAppendFailure(t *testing.T) {
	appendErr := errors.New("column type mismatch")
	conn := &batchConnStub{batch: &recordingBatch{appendErr: appendErr}}
	w := &ClickHouseWriter{conn: conn, table: "features"}

	err := w.Write(sampleBatch(time.Now()))
	require.ErrorIs(t, err, appendErr)
	assert.True(t, conn.batch.aborted)
	assert.False(t, conn.batch.sent)
}
