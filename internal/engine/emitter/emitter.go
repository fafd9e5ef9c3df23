package emitter

import (
	"log/slog"
	"sync"
	"time"

	"Go2NetSentry/internal/engine/flowtable"
	"Go2NetSentry/internal/metrics"
	"Go2NetSentry/internal/model"
)

// Drainer hands over the current window's flow records and starts a new window.
type Drainer interface {
	DrainAndReset() []flowtable.FlowRecord
}

// Emitter periodically drains the flow table and writes one feature row per flow to
// every writer. A window with no flows produces no I/O.
type Emitter struct {
	table   Drainer
	writers []model.Writer
	period  time.Duration
	label   func() model.Label
	metrics *metrics.Metrics

	mu       sync.Mutex
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates an emitter. label is consulted once per flush so that operator changes
// take effect at the next window.
func New(table Drainer, writers []model.Writer, period time.Duration, label func() model.Label, m *metrics.Metrics) *Emitter {
	return &Emitter{
		table:   table,
		writers: writers,
		period:  period,
		label:   label,
		metrics: m,
		done:    make(chan struct{}),
	}
}

// Start launches the ticker loop.
func (e *Emitter) Start() {
	e.wg.Add(1)
	go e.run()
	slog.Info("feature emitter started", "period", e.period, "writers", len(e.writers))
}

func (e *Emitter) run() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Flush(time.Now())
		case <-e.done:
			return
		}
	}
}

// Flush drains the table and writes the resulting batch. It returns the number of
// rows emitted.
func (e *Emitter) Flush(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	records := e.table.DrainAndReset()
	if len(records) == 0 {
		return 0
	}

	label := model.LabelNormal
	if e.label != nil {
		label = e.label()
	}
	batch := model.FeatureBatch{Timestamp: now, Vectors: make([]model.FeatureVector, 0, len(records))}
	for _, rec := range records {
		batch.Vectors = append(batch.Vectors, Compute(rec, label))
	}

	for _, w := range e.writers {
		if err := w.Write(batch); err != nil {
			slog.Error("failed to write feature batch", "writer", w.Name(), "rows", len(batch.Vectors), "err", err)
			e.metrics.WriterError(w.Name())
		}
	}
	e.metrics.Emitted(len(batch.Vectors))
	slog.Debug("emitted feature batch", "rows", len(batch.Vectors), "label", label)
	return len(batch.Vectors)
}

// Stop ends the loop, flushes the last partial window and closes every writer.
// Later calls do nothing.
func (e *Emitter) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
		e.Flush(time.Now())
		for _, w := range e.writers {
			if err := w.Close(); err != nil {
				slog.Error("failed to close writer", "writer", w.Name(), "err", err)
			}
		}
		slog.Info("feature emitter stopped")
	})
}
