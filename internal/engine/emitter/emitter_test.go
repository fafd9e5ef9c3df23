package emitter

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"Go2NetSentry/internal/engine/flowtable"
	"Go2NetSentry/internal/metrics"
	"Go2NetSentry/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu      sync.Mutex
	name    string
	batches []model.FeatureBatch
	err     error
	closed  bool
}

func (w *memWriter) Write(batch model.FeatureBatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, batch)
	return w.err
}

func (w *memWriter) Name() string { return w.name }

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func key(t *testing.T) flowtable.FlowKey {
	t.Helper()
	k, _ := flowtable.NewFlowKey(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 6, 1000, 80)
	return k
}

func TestComputeSinglePacket(t *testing.T) {
	ts := time.Unix(100, 0)
	rec := flowtable.FlowRecord{Key: key(t), StartTime: ts, LastSeen: ts, Forward: 1, Bytes: 60, SYN: 1, Protocol: 6}

	v := Compute(rec, model.LabelAttack)
	assert.Equal(t, 0.001, v.Duration)
	assert.Equal(t, 60000.0, v.ByteRate)
	assert.Equal(t, 1000.0, v.PacketRate)
	assert.Equal(t, 60.0, v.MeanPacketLength)
	assert.Zero(t, v.MeanIAT)
	assert.Equal(t, uint64(1), v.SYNCount)
	assert.Equal(t, model.LabelAttack, v.Label)
	assert.Equal(t, "10.0.0.1-10.0.0.2-6-1000-80", v.Flow)
}

func TestComputeRounding(t *testing.T) {
	start := time.Unix(100, 0)
	rec := flowtable.FlowRecord{
		Key:       key(t),
		StartTime: start,
		LastSeen:  start.Add(3 * time.Second),
		Forward:   2,
		Backward:  1,
		Bytes:     100,
		IATSum:    3 * time.Second,
		Protocol:  6,
	}

	v := Compute(rec, model.LabelNormal)
	assert.Equal(t, 3.0, v.Duration)
	assert.Equal(t, 33.33, v.ByteRate)
	assert.Equal(t, 1.0, v.PacketRate)
	assert.Equal(t, 33.33, v.MeanPacketLength)
	assert.Equal(t, 1.0, v.MeanIAT)
	assert.Equal(t, []string{"3", "2", "1", "33.33", "0", "0", "0", "0", "1", "33.33", "1", "6", "0"}, v.Row())
}

func TestComputeIATUsesFourPlaces(t *testing.T) {
	start := time.Unix(100, 0)
	rec := flowtable.FlowRecord{
		Key:       key(t),
		StartTime: start,
		LastSeen:  start.Add(time.Second),
		Forward:   3,
		Bytes:     90,
		IATSum:    time.Second,
	}
	v := Compute(rec, model.LabelNormal)
	assert.Equal(t, 0.3333, v.MeanIAT)
}

func TestFlushEmptyTableDoesNoIO(t *testing.T) {
	w := &memWriter{name: "mem"}
	e := New(flowtable.New(4), []model.Writer{w}, time.Hour, nil, metrics.New())

	assert.Zero(t, e.Flush(time.Now()))
	assert.Empty(t, w.batches)
}

func TestFlushWritesEveryWriterAndResets(t *testing.T) {
	table := flowtable.New(4)
	k, fromLow := flowtable.NewFlowKey(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 17, 5000, 53)
	table.Observe(k, time.Now(), 80, fromLow, model.TCPFlags{})
	k2, fromLow2 := flowtable.NewFlowKey(net.ParseIP("10.0.0.3"), net.ParseIP("10.0.0.2"), 6, 1234, 443)
	table.Observe(k2, time.Now(), 60, fromLow2, model.TCPFlags{SYN: true})

	failing := &memWriter{name: "failing", err: errors.New("disk full")}
	ok := &memWriter{name: "ok"}
	label := model.LabelAttack
	e := New(table, []model.Writer{failing, ok}, time.Hour, func() model.Label { return label }, metrics.New())

	require.Equal(t, 2, e.Flush(time.Now()))
	require.Len(t, ok.batches, 1)
	require.Len(t, failing.batches, 1)
	assert.Len(t, ok.batches[0].Vectors, 2)
	for _, v := range ok.batches[0].Vectors {
		assert.Equal(t, model.LabelAttack, v.Label)
	}
	assert.Zero(t, table.Len())
	assert.Zero(t, e.Flush(time.Now()))
}

func TestStopFlushesAndClosesWriters(t *testing.T) {
	table := flowtable.New(4)
	k, fromLow := flowtable.NewFlowKey(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 6, 1, 2)
	table.Observe(k, time.Now(), 60, fromLow, model.TCPFlags{})

	w := &memWriter{name: "mem"}
	e := New(table, []model.Writer{w}, time.Hour, nil, nil)
	e.Start()
	e.Stop()

	assert.True(t, w.closed)
	require.Len(t, w.batches, 1)
	assert.Equal(t, model.LabelNormal, w.batches[0].Vectors[0].Label)
}

func TestStopTwiceIsNoop(t *testing.T) {
	table := flowtable.New(4)
	table.Observe(key(t), time.Now(), 60, true, model.TCPFlags{})

	w := &memWriter{name: "mem"}
	e := New(table, []model.Writer{w}, time.Hour, nil, nil)
	e.Start()
	e.Stop()

	table.Observe(key(t), time.Now(), 60, true, model.TCPFlags{})
	assert.NotPanics(t, e.Stop)
	assert.Len(t, w.batches, 1)
	assert.Equal(t, 1, table.Len())
}
