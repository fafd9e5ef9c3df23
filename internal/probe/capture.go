package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Go2NetSentry/internal/config"
	sentrypcap "Go2NetSentry/pkg/pcap"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// readTimeout bounds each blocking read so closing the handle stops the capture.
const readTimeout = 500 * time.Millisecond

// FrameRecorder receives every captured frame before it is handed on.
type FrameRecorder interface {
	Enqueue(ci gopacket.CaptureInfo, data []byte)
}

// Capture reads frames from a live interface.
type Capture struct {
	handle   *pcap.Handle
	cfg      config.PcapSourceConfig
	recorder FrameRecorder
}

// OpenLive opens the configured interface for capture.
func OpenLive(cfg config.PcapSourceConfig) (*Capture, error) {
	if cfg.Interface == "" {
		return nil, fmt.Errorf("pcap source requires an interface")
	}
	handle, err := pcap.OpenLive(cfg.Interface, cfg.SnapshotLen, cfg.Promiscuous, readTimeout)
	if err != nil {
		return nil, fmt.Errorf("error opening device %s: %w", cfg.Interface, err)
	}
	slog.Info("capture started", "interface", cfg.Interface, "snaplen", cfg.SnapshotLen)
	return &Capture{handle: handle, cfg: cfg}, nil
}

// SetRecorder makes the capture copy every frame to r.
func (c *Capture) SetRecorder(r FrameRecorder) {
	c.recorder = r
}

// Run delivers packet-ins to handler until ctx is done or the handle is closed.
func (c *Capture) Run(ctx context.Context, handler PacketHandler) {
	stop := context.AfterFunc(ctx, c.handle.Close)
	defer func() {
		if stop() {
			c.handle.Close()
		}
	}()

	packets := 0
	source := gopacket.NewPacketSource(c.handle, c.handle.LinkType())
	for packet := range source.Packets() {
		if c.recorder != nil {
			c.recorder.Enqueue(packet.Metadata().CaptureInfo, packet.Data())
		}
		handler(sentrypcap.ToPacketIn(packet, c.cfg.DatapathID, c.cfg.InPort))
		packets++
		if packets%1000 == 0 {
			slog.Debug("frames captured", "count", packets)
		}
	}
	slog.Info("capture stopped", "interface", c.cfg.Interface, "frames", packets)
}
