package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/factory"
	"Go2NetSentry/internal/model"
)

func init() {
	factory.RegisterWriter("csv", func(def config.WriterDef) (model.Writer, error) {
		return NewCSVWriter(def.CSV)
	})
}

// CSVWriter appends feature rows to a CSV dataset with a fixed header.
type CSVWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
}

// NewCSVWriter opens the dataset. Unless cfg.Append is set the file is truncated; the
// header is written whenever the file starts out empty.
func NewCSVWriter(cfg config.CSVConfig) (*CSVWriter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv writer requires a path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(cfg.Path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset '%s': %w", cfg.Path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat dataset '%s': %w", cfg.Path, err)
	}

	cw := &CSVWriter{path: cfg.Path, file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := cw.w.Write(model.FeatureHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
		cw.w.Flush()
		if err := cw.w.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
	}
	return cw, nil
}

func (c *CSVWriter) Name() string {
	return "csv:" + c.path
}

// Write appends one row per vector and flushes.
func (c *CSVWriter) Write(batch model.FeatureBatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range batch.Vectors {
		if err := c.w.Write(v.Row()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
