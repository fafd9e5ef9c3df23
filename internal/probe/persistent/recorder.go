package persistent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const defaultBufferSize = 10000

type frame struct {
	ci   gopacket.CaptureInfo
	data []byte
}

// Recorder writes captured frames to a pcap file from a single goroutine so the
// file keeps capture order.
type Recorder struct {
	file    *os.File
	writer  *pcapgo.Writer
	frames  chan frame
	wg      sync.WaitGroup
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewRecorder creates <dir>/<timestamp>.pcap and starts the writer goroutine.
func NewRecorder(dir string, snaplen uint32, bufferSize int) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	path := filepath.Join(dir, time.Now().Format("2006-01-02_15-04-05")+".pcap")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create record file: %w", err)
	}
	w := pcapgo.NewWriter(file)
	if err := w.WriteFileHeader(snaplen, layers.LinkTypeEthernet); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	r := &Recorder{file: file, writer: w, frames: make(chan frame, bufferSize)}
	r.wg.Add(1)
	go r.run()
	slog.Info("frame recorder started", "path", path)
	return r, nil
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for f := range r.frames {
		if err := r.writer.WritePacket(f.ci, f.data); err != nil {
			slog.Warn("failed to record frame", "err", err)
			continue
		}
		r.written.Add(1)
	}
}

// Enqueue hands a frame to the writer. Frames are dropped when the buffer is full.
func (r *Recorder) Enqueue(ci gopacket.CaptureInfo, data []byte) {
	select {
	case r.frames <- frame{ci: ci, data: data}:
	default:
		r.dropped.Add(1)
	}
}

// Path returns the file being written.
func (r *Recorder) Path() string {
	return r.file.Name()
}

// Stop drains the buffer and closes the file.
func (r *Recorder) Stop() error {
	close(r.frames)
	r.wg.Wait()
	slog.Info("frame recorder stopped", "path", r.file.Name(),
		"written", r.written.Load(), "dropped", r.dropped.Load())
	return r.file.Close()
}
