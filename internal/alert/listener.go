package alert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"time"

	"Go2NetSentry/internal/metrics"
)

// Handler consumes parsed alerts. It is called from the listener goroutine only.
type Handler interface {
	HandleAlert(rec *Record)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(rec *Record)

func (f HandlerFunc) HandleAlert(rec *Record) { f(rec) }

// readRetryDelay paces the loop when the socket keeps failing.
const readRetryDelay = 50 * time.Millisecond

type datagramConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	Close() error
}

// Listener receives Snort alerts on a unix datagram socket.
type Listener struct {
	path        string
	maxDatagram int
	handler     Handler
	metrics     *metrics.Metrics
	conn        datagramConn
}

// NewListener creates a listener for path. It does not bind until Listen is called.
func NewListener(path string, maxDatagram int, handler Handler, m *metrics.Metrics) *Listener {
	if maxDatagram < HeaderSize {
		maxDatagram = MaxDatagram
	}
	return &Listener{path: path, maxDatagram: maxDatagram, handler: handler, metrics: m}
}

// Listen replaces any stale socket file at the path, binds it and opens its
// permissions so that a process running as another user can send to it.
func (l *Listener) Listen() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stale alert socket %s: %w", l.path, err)
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: l.path, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("failed to bind alert socket %s: %w", l.path, err)
	}
	if err := os.Chmod(l.path, 0o777); err != nil {
		conn.Close()
		return fmt.Errorf("failed to chmod alert socket %s: %w", l.path, err)
	}
	l.conn = conn
	l.metrics.ListenerUp(true)
	slog.Info("alert listener bound", "path", l.path)
	return nil
}

// Serve reads datagrams until ctx is cancelled or the socket is closed. Read
// failures and malformed datagrams are logged and skipped. Listen must have
// succeeded first.
func (l *Listener) Serve(ctx context.Context) error {
	if l.conn == nil {
		return errors.New("alert listener is not bound")
	}
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()
	defer l.metrics.ListenerUp(false)

	buf := make([]byte, l.maxDatagram)
	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				slog.Info("alert listener stopped", "path", l.path)
				return nil
			}
			slog.Warn("alert socket read failed", "path", l.path, "err", err)
			l.metrics.AlertReadError()
			select {
			case <-ctx.Done():
			case <-time.After(readRetryDelay):
			}
			continue
		}

		rec, err := ParseAlert(buf[:n])
		if err != nil {
			slog.Warn("discarding malformed alert", "bytes", n, "err", err)
			l.metrics.AlertParseError()
			continue
		}
		rec.ReceivedAt = time.Now()
		l.handler.HandleAlert(rec)
	}
}

// Close unbinds the socket and removes its file.
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
		err = rmErr
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}
