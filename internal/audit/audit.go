package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"Go2NetSentry/internal/model"
)

// Entry is one line of the audit log.
type Entry struct {
	Type  string            `json:"type"`
	Block *model.BlockEvent `json:"block,omitempty"`
	Alert *model.AlertEvent `json:"alert,omitempty"`
}

// Log appends block and alert events to a JSON-lines file.
type Log struct {
	mu  sync.Mutex
	w   io.WriteCloser
	enc *json.Encoder
}

// Open opens path for appending, creating parent directories as needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log '%s': %w", path, err)
	}
	return New(f), nil
}

// New writes the audit log to w.
func New(w io.WriteCloser) *Log {
	return &Log{w: w, enc: json.NewEncoder(w)}
}

func (l *Log) PublishBlock(ev model.BlockEvent) error {
	return l.write(Entry{Type: "block", Block: &ev})
}

func (l *Log) PublishAlert(ev model.AlertEvent) error {
	return l.write(Entry{Type: "alert", Alert: &ev})
}

func (l *Log) write(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(e); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Close()
}

var _ model.EventSink = (*Log)(nil)
