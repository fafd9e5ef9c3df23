package alert

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"Go2NetSentry/internal/engine/detector"
	"Go2NetSentry/internal/engine/protocol"
	"Go2NetSentry/internal/metrics"
	"Go2NetSentry/internal/model"
	"Go2NetSentry/internal/notification"

	"github.com/google/uuid"
)

// CountryLookup resolves an address to a country code.
type CountryLookup interface {
	Country(ip net.IP) string
}

// Correlator enriches alerts with what the engine knows about the alerting host and
// fans them out to the event sinks and, for urgent alerts, the notifier.
type Correlator struct {
	detector          *detector.Detector
	sinks             []model.EventSink
	geo               CountryLookup
	notifier          model.Notifier
	notifyMaxPriority uint32
	metrics           *metrics.Metrics
}

// CorrelatorOption configures optional collaborators.
type CorrelatorOption func(*Correlator)

// WithGeoIP enriches alerts with the source country.
func WithGeoIP(geo CountryLookup) CorrelatorOption {
	return func(c *Correlator) { c.geo = geo }
}

// WithNotifier sends alerts with priority at or below maxPriority (1 is the most
// urgent Snort priority) to n.
func WithNotifier(n model.Notifier, maxPriority uint32) CorrelatorOption {
	return func(c *Correlator) {
		c.notifier = n
		c.notifyMaxPriority = maxPriority
	}
}

func NewCorrelator(d *detector.Detector, sinks []model.EventSink, m *metrics.Metrics, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{detector: d, sinks: sinks, metrics: m}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleAlert implements Handler.
func (c *Correlator) HandleAlert(rec *Record) {
	ev, err := c.Correlate(rec)
	if err != nil {
		slog.Warn("discarding alert", "event_id", rec.EventID, "err", err)
		c.metrics.AlertParseError()
		return
	}
	c.metrics.Alert(strconv.FormatUint(uint64(ev.Priority), 10))

	slog.Warn("IDS alert", "message", ev.Message, "event_id", ev.EventID, "priority", ev.Priority,
		"src_mac", ev.SrcMAC, "src_ip", ev.SrcIP, "dst_ip", ev.DstIP,
		"src_blocked", ev.SrcBlocked, "src_packets", ev.SrcPackets)

	for _, sink := range c.sinks {
		if err := sink.PublishAlert(ev); err != nil {
			slog.Error("failed to publish alert event", "event_id", ev.EventID, "err", err)
		}
	}

	if c.notifier != nil && ev.Priority <= c.notifyMaxPriority {
		subject, body := notification.FormatAlert(ev)
		if err := c.notifier.Send(subject, body); err != nil {
			slog.Error("failed to send alert notification", "event_id", ev.EventID, "err", err)
		}
	}
}

// Correlate builds the alert event for rec. It fails with ErrBadFrame when the record
// carries a frame that does not decode as Ethernet.
func (c *Correlator) Correlate(rec *Record) (model.AlertEvent, error) {
	ev := model.AlertEvent{
		ID:         uuid.NewString(),
		Time:       rec.ReceivedAt,
		Message:    rec.Message,
		EventID:    rec.EventID,
		Priority:   rec.Priority,
		FrameBytes: len(rec.Frame),
	}
	if len(rec.Frame) == 0 {
		return ev, nil
	}

	facts, err := protocol.ParsePacket(rec.Frame)
	if err != nil {
		return ev, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	ev.SrcMAC = facts.SrcMAC.String()
	ev.DstMAC = facts.DstMAC.String()
	if facts.HasNetwork {
		ev.SrcIP = facts.SrcIP.String()
		ev.DstIP = facts.DstIP.String()
		ev.Protocol = facts.Protocol
		ev.SrcPort = facts.SrcPort
		ev.DstPort = facts.DstPort
		if c.geo != nil {
			ev.SrcCountry = c.geo.Country(facts.SrcIP)
		}
	}

	if c.detector != nil {
		if st, ok := c.detector.Counters().Get(ev.SrcMAC); ok {
			ev.SrcPackets = st.Packets
			ev.SrcSynOnly = st.SynOnly
		}
		ev.SrcBlocked = c.detector.Registry().IsBlocked(ev.SrcMAC)
	}
	return ev, nil
}
