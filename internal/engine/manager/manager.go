package manager

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/engine/detector"
	"Go2NetSentry/internal/engine/emitter"
	"Go2NetSentry/internal/engine/flowtable"
	"Go2NetSentry/internal/engine/protocol"
	"Go2NetSentry/internal/engine/switching"
	"Go2NetSentry/internal/metrics"
	"Go2NetSentry/internal/model"

	"github.com/google/uuid"
)

// Deps are the collaborators the manager drives.
type Deps struct {
	ControlPlane model.ControlPlane
	Writers      []model.Writer
	Sinks        []model.EventSink
	Metrics      *metrics.Metrics
}

// Status is a point-in-time view of the engine.
type Status struct {
	StartedAt    time.Time `json:"started_at"`
	Workers      int       `json:"workers"`
	QueueDepth   int       `json:"queue_depth"`
	Flows        int       `json:"flows"`
	Hosts        int       `json:"hosts"`
	BlockedHosts int       `json:"blocked_hosts"`
	Label        string    `json:"label"`
	Mode         string    `json:"forwarding_mode"`
}

// Manager runs the per-packet pipeline over a worker pool and owns the feature emitter.
type Manager struct {
	table     *flowtable.Table
	detector  *detector.Detector
	forwarder *switching.Forwarder
	emitter   *emitter.Emitter
	cp        model.ControlPlane
	sinks     []model.EventSink
	metrics   *metrics.Metrics

	ignoreLLDP    bool
	blockPriority uint16
	mode          switching.Mode
	label         atomic.Int32

	// Worker pool for concurrent packet processing
	packetChannel chan *model.PacketIn
	numWorkers    int
	workerWg      sync.WaitGroup
	stopOnce      sync.Once
	startedAt     time.Time
}

// NewManager creates a Manager from the configuration.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.ControlPlane == nil {
		return nil, fmt.Errorf("manager requires a control plane")
	}
	label, ok := model.ParseLabel(cfg.Emitter.Label)
	if !ok {
		return nil, fmt.Errorf("invalid emitter label '%s'", cfg.Emitter.Label)
	}
	period := cfg.EmitterPeriod()
	if period <= 0 {
		return nil, fmt.Errorf("emitter period must be a positive duration")
	}

	mode := switching.Mode(cfg.Forwarding.Mode)
	m := &Manager{
		table: flowtable.New(cfg.Engine.FlowShards),
		detector: detector.New(detector.NewHostCounters(), detector.NewBlockRegistry(), detector.Thresholds{
			Packets: cfg.Detection.PacketThreshold,
			Syn:     cfg.Detection.SynThreshold,
		}),
		forwarder:     switching.New(deps.ControlPlane, mode, cfg.Forwarding.InstallRules, cfg.Forwarding.ForwardPriority),
		cp:            deps.ControlPlane,
		sinks:         deps.Sinks,
		metrics:       deps.Metrics,
		ignoreLLDP:    cfg.Detection.IgnoreLLDP == nil || *cfg.Detection.IgnoreLLDP,
		blockPriority: cfg.Detection.BlockPriority,
		mode:          mode,
		packetChannel: make(chan *model.PacketIn, cfg.Engine.SizeOfPacketChannel),
		numWorkers:    cfg.Engine.NumWorkers,
	}
	m.label.Store(int32(label))
	m.emitter = emitter.New(m.table, deps.Writers, period, m.Label, deps.Metrics)

	deps.Metrics.RegisterGaugeFunc("sentry_flow_table_entries", "Flows in the current window.",
		func() float64 { return float64(m.table.Len()) })
	deps.Metrics.RegisterGaugeFunc("sentry_blocked_hosts", "Hosts in the block registry.",
		func() float64 { return float64(m.detector.Registry().Len()) })

	return m, nil
}

// Start begins the packet workers and the emitter.
func (m *Manager) Start() {
	m.startedAt = time.Now()
	m.emitter.Start()

	m.workerWg.Add(m.numWorkers)
	for i := 0; i < m.numWorkers; i++ {
		go m.worker()
	}
	slog.Info("manager started", "workers", m.numWorkers, "mode", m.mode, "label", m.Label())
}

// Stop drains the packet channel, flushes the final window and closes the writers.
// It is safe to call more than once, and without Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		slog.Info("manager stopping")
		// 1. Stop accepting new packets.
		close(m.packetChannel)

		// 2. Wait for all workers to finish processing buffered packets.
		m.workerWg.Wait()

		// 3. Emit whatever is left of the current window.
		m.emitter.Stop()

		slog.Info("manager stopped")
	})
}

func (m *Manager) worker() {
	defer m.workerWg.Done()
	for pin := range m.packetChannel {
		m.HandlePacketIn(pin)
	}
}

// InputChannel is where packet sources deliver packet-ins.
func (m *Manager) InputChannel() chan<- *model.PacketIn {
	return m.packetChannel
}

// SwitchConnected installs the table-miss rule on a newly connected datapath.
func (m *Manager) SwitchConnected(dpid uint64) {
	if err := m.cp.InstallTableMiss(dpid); err != nil {
		slog.Error("failed to install table-miss rule", "dpid", dpid, "err", err)
		m.metrics.ControlPlaneError("table_miss")
		return
	}
	slog.Info("switch connected", "dpid", dpid)
}

// HandlePacketIn runs one packet through the pipeline: blocked check, flow table,
// host counters and detector, then forwarding unless the packet triggered a block.
func (m *Manager) HandlePacketIn(pin *model.PacketIn) {
	facts, err := protocol.ParsePacket(pin.Data)
	if err != nil {
		slog.Debug("flooding undecodable packet-in", "dpid", pin.DatapathID, "in_port", pin.InPort, "err", err)
		m.metrics.Packet(metrics.VerdictUnparsed)
		if err := m.forwarder.Flood(pin); err != nil {
			slog.Error("failed to forward packet", "dpid", pin.DatapathID, "in_port", pin.InPort, "err", err)
			m.metrics.ControlPlaneError("forward")
		}
		return
	}
	if m.ignoreLLDP && facts.EtherType == model.EtherTypeLLDP {
		m.metrics.Packet(metrics.VerdictIgnored)
		return
	}

	src := facts.SrcMAC.String()
	if m.detector.Registry().IsBlocked(src) {
		m.metrics.Packet(metrics.VerdictDropped)
		return
	}

	if facts.HasNetwork {
		ts := pin.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		key, fromLow := flowtable.NewFlowKey(facts.SrcIP, facts.DstIP, facts.Protocol, facts.SrcPort, facts.DstPort)
		m.table.Observe(key, ts, facts.Length, fromLow, facts.TCPFlags)

		dec := m.detector.Inspect(pin.DatapathID, src, facts.IsTCP, facts.TCPFlags.SynOnly())
		if dec.Block {
			if dec.Install {
				m.block(pin, facts, dec)
			}
			m.metrics.Packet(metrics.VerdictBlocked)
			return
		}
	}

	if err := m.forwarder.Forward(pin, facts.SrcMAC, facts.DstMAC); err != nil {
		slog.Error("failed to forward packet", "dpid", pin.DatapathID, "in_port", pin.InPort, "err", err)
		m.metrics.ControlPlaneError("forward")
		return
	}
	m.metrics.Packet(metrics.VerdictForwarded)
}

// block installs the drop rule for the host that just entered the registry. A
// failed install is logged; the registry entry stays.
func (m *Manager) block(pin *model.PacketIn, facts *model.HeaderFacts, dec detector.Decision) {
	ev := model.BlockEvent{
		ID:         uuid.NewString(),
		Time:       time.Now(),
		DatapathID: pin.DatapathID,
		MAC:        facts.SrcMAC.String(),
		Reason:     string(dec.Reason),
		Packets:    dec.State.Packets,
		SynOnly:    dec.State.SynOnly,
	}

	if err := m.cp.InstallDropRule(pin.DatapathID, facts.SrcMAC, m.blockPriority); err != nil {
		slog.Error("failed to install drop rule", "dpid", pin.DatapathID, "mac", ev.MAC, "err", err)
		m.metrics.ControlPlaneError("drop")
		ev.RuleError = err.Error()
	}
	m.metrics.Block(ev.Reason)
	slog.Warn("host blocked", "mac", ev.MAC, "dpid", ev.DatapathID, "reason", ev.Reason,
		"packets", ev.Packets, "syn_only", ev.SynOnly)

	for _, sink := range m.sinks {
		if err := sink.PublishBlock(ev); err != nil {
			slog.Error("failed to publish block event", "mac", ev.MAC, "err", err)
		}
	}
}

// SetLabel changes the label attached to rows from the next flush on.
func (m *Manager) SetLabel(l model.Label) {
	m.label.Store(int32(l))
	slog.Info("capture label changed", "label", l)
}

// Label returns the current capture label.
func (m *Manager) Label() model.Label {
	return model.Label(m.label.Load())
}

// Flush emits the current window immediately.
func (m *Manager) Flush() int {
	return m.emitter.Flush(time.Now())
}

// FlushAt emits the current window stamped with at, for callers that keep their
// own clock such as capture replay.
func (m *Manager) FlushAt(at time.Time) int {
	return m.emitter.Flush(at)
}

// Detector exposes the host counters and block registry.
func (m *Manager) Detector() *detector.Detector {
	return m.detector
}

// Status reports the engine's current state.
func (m *Manager) Status() Status {
	return Status{
		StartedAt:    m.startedAt,
		Workers:      m.numWorkers,
		QueueDepth:   len(m.packetChannel),
		Flows:        m.table.Len(),
		Hosts:        len(m.detector.Counters().Snapshot()),
		BlockedHosts: m.detector.Registry().Len(),
		Label:        m.Label().String(),
		Mode:         string(m.mode),
	}
}
