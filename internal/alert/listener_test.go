package alert

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Go2NetSentry/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "alert")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "snort_alert")
}

func send(t *testing.T, path string, payload []byte) {
	t.Helper()
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func TestListenerSurvivesMalformedDatagrams(t *testing.T) {
	path := socketPath(t)
	// A stale file at the path must not prevent binding.
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	got := make(chan *Record, 4)
	l := NewListener(path, MaxDatagram, HandlerFunc(func(rec *Record) { got <- rec }), metrics.New())
	require.NoError(t, l.Listen())
	t.Cleanup(func() { l.Close() })

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o777), info.Mode().Perm())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- l.Serve(ctx) }()

	send(t, path, make([]byte, 10))
	send(t, path, MarshalAlert("SYN scan", 42, 1, nil))

	select {
	case rec := <-got:
		assert.Equal(t, "SYN scan", rec.Message)
		assert.Equal(t, uint32(42), rec.EventID)
		assert.False(t, rec.ReceivedAt.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("alert was not delivered")
	}

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.Empty(t, got)
}

func TestListenFailsOnMissingDirectory(t *testing.T) {
	l := NewListener(filepath.Join(socketPath(t), "missing", "sock"), MaxDatagram, HandlerFunc(func(*Record) {}), nil)
	assert.Error(t, l.Listen())
	assert.Error(t, l.Serve(context.Background()))
}

type scriptedRead struct {
	data []byte
	err  error
}

// scriptedConn replays reads in order, then reports the socket closed.
type scriptedConn struct {
	reads chan scriptedRead
}

func (c *scriptedConn) ReadFrom(b []byte) (int, net.Addr, error) {
	r, ok := <-c.reads
	if !ok {
		return 0, nil, net.ErrClosed
	}
	return copy(b, r.data), nil, r.err
}

func (c *scriptedConn) Close() error { return nil }

func TestServeContinuesAfterReadError(t *testing.T) {
	conn := &scriptedConn{reads: make(chan scriptedRead, 3)}
	conn.reads <- scriptedRead{err: errors.New("resource temporarily unavailable")}
	conn.reads <- scriptedRead{data: MarshalAlert("after error", 7, 2, nil)}
	close(conn.reads)

	var got []*Record
	l := NewListener("unused", MaxDatagram, HandlerFunc(func(rec *Record) { got = append(got, rec) }), metrics.New())
	l.conn = conn

	require.NoError(t, l.Serve(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, "after error", got[0].Message)
	assert.Equal(t, uint32(7), got[0].EventID)
}
