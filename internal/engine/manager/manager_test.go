package manager

import (
	"net"
	"sync"
	"testing"
	"time"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/controlplane/cptest"
	"Go2NetSentry/internal/engine/protocol"
	"Go2NetSentry/internal/metrics"
	"Go2NetSentry/internal/model"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	macM = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x0a}
	macV = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x0b}
)

type sinkRecorder struct {
	mu     sync.Mutex
	blocks []model.BlockEvent
}

func (s *sinkRecorder) PublishBlock(ev model.BlockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, ev)
	return nil
}

func (s *sinkRecorder) PublishAlert(model.AlertEvent) error { return nil }
func (s *sinkRecorder) Close() error                       { return nil }

func newManager(t *testing.T, mutate func(*config.Config)) (*Manager, *cptest.Recorder, *sinkRecorder) {
	t.Helper()
	cfg := config.Default()
	cfg.Emitter.Period = "1h"
	if mutate != nil {
		mutate(cfg)
	}
	rec := &cptest.Recorder{}
	sink := &sinkRecorder{}
	m, err := NewManager(cfg, Deps{ControlPlane: rec, Sinks: []model.EventSink{sink}, Metrics: metrics.New()})
	require.NoError(t, err)
	return m, rec, sink
}

func tcpFrame(t *testing.T, src net.HardwareAddr, flags model.TCPFlags) []byte {
	t.Helper()
	frame, err := protocol.BuildFrame(protocol.FrameSpec{
		SrcMAC: src, DstMAC: macV,
		SrcIP: net.ParseIP("10.0.0.10"), DstIP: net.ParseIP("10.0.0.20"),
		Protocol: layers.IPProtocolTCP, SrcPort: 40000, DstPort: 80,
		Flags: flags,
	})
	require.NoError(t, err)
	return frame
}

func packetIn(data []byte) *model.PacketIn {
	return &model.PacketIn{DatapathID: 1, InPort: 1, BufferID: model.NoBuffer, Timestamp: time.Now(), Data: data}
}

func TestEighthPacketBlocksHostOnce(t *testing.T) {
	m, rec, sink := newManager(t, nil)
	frame := tcpFrame(t, macM, model.TCPFlags{ACK: true})

	for i := 0; i < 7; i++ {
		m.HandlePacketIn(packetIn(frame))
	}
	assert.Len(t, rec.Ops("flood"), 7)
	assert.Empty(t, rec.Ops("drop"))

	m.HandlePacketIn(packetIn(frame))
	drops := rec.Ops("drop")
	require.Len(t, drops, 1)
	assert.Equal(t, cptest.Call{Op: "drop", DPID: 1, MAC: macM.String(), Priority: 100}, drops[0])
	assert.Len(t, rec.Ops("flood"), 7, "the blocking packet is not forwarded")
	require.Len(t, sink.blocks, 1)
	assert.Equal(t, "packet_rate", sink.blocks[0].Reason)
	assert.Equal(t, uint64(8), sink.blocks[0].Packets)
	assert.NotEmpty(t, sink.blocks[0].ID)

	flowsBefore := m.table.Len()
	stateBefore, _ := m.Detector().Counters().Get(macM.String())
	for i := 0; i < 5; i++ {
		m.HandlePacketIn(packetIn(frame))
	}
	stateAfter, _ := m.Detector().Counters().Get(macM.String())
	assert.Equal(t, stateBefore, stateAfter)
	assert.Equal(t, flowsBefore, m.table.Len())
	assert.Len(t, rec.Ops("drop"), 1)
	assert.Len(t, rec.Calls(), 8)

	records := m.table.DrainAndReset()
	require.Len(t, records, 1)
	assert.Equal(t, uint64(8), records[0].Packets())
}

func TestConcurrentWorkersInstallOneDropRule(t *testing.T) {
	m, rec, _ := newManager(t, func(c *config.Config) { c.Engine.NumWorkers = 8 })
	frame := tcpFrame(t, macM, model.TCPFlags{SYN: true})

	m.Start()
	for i := 0; i < 200; i++ {
		m.InputChannel() <- packetIn(frame)
	}
	m.Stop()

	assert.Len(t, rec.Ops("drop"), 1)
	assert.Len(t, rec.Ops("flood"), 7)
	st, _ := m.Detector().Counters().Get(macM.String())
	assert.GreaterOrEqual(t, st.Packets, uint64(8))
}

func TestDropRuleFailureKeepsRegistryEntry(t *testing.T) {
	m, rec, sink := newManager(t, nil)
	rec.Err = assert.AnError
	frame := tcpFrame(t, macM, model.TCPFlags{})

	for i := 0; i < 9; i++ {
		m.HandlePacketIn(packetIn(frame))
	}
	assert.True(t, m.Detector().Registry().IsBlocked(macM.String()))
	assert.Len(t, rec.Ops("drop"), 1)
	require.Len(t, sink.blocks, 1)
	assert.NotEmpty(t, sink.blocks[0].RuleError)
}

func TestLLDPIsIgnored(t *testing.T) {
	m, rec, _ := newManager(t, nil)
	frame, err := protocol.BuildLinkFrame(macM, macV, model.EtherTypeLLDP, make([]byte, 46))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		m.HandlePacketIn(packetIn(frame))
	}
	assert.Empty(t, rec.Calls())
	_, seen := m.Detector().Counters().Get(macM.String())
	assert.False(t, seen)
}

func TestNonIPIsForwardedWithoutTracking(t *testing.T) {
	m, rec, _ := newManager(t, nil)
	frame, err := protocol.BuildLinkFrame(macM, macV, uint16(layers.EthernetTypeARP), make([]byte, 28))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		m.HandlePacketIn(packetIn(frame))
	}
	assert.Len(t, rec.Ops("flood"), 20)
	assert.Zero(t, m.table.Len())
	assert.Empty(t, rec.Ops("drop"))
}

func TestSwitchConnectedInstallsTableMiss(t *testing.T) {
	m, rec, _ := newManager(t, nil)
	m.SwitchConnected(42)
	assert.Equal(t, []cptest.Call{{Op: "table_miss", DPID: 42}}, rec.Calls())
}

func TestLabelAndStatus(t *testing.T) {
	m, _, _ := newManager(t, func(c *config.Config) { c.Forwarding.Mode = "learning" })
	assert.Equal(t, model.LabelNormal, m.Label())

	m.SetLabel(model.LabelAttack)
	m.HandlePacketIn(packetIn(tcpFrame(t, macM, model.TCPFlags{})))

	st := m.Status()
	assert.Equal(t, "attack", st.Label)
	assert.Equal(t, "learning", st.Mode)
	assert.Equal(t, 1, st.Flows)
	assert.Equal(t, 1, st.Hosts)
	assert.Zero(t, st.BlockedHosts)

	assert.Equal(t, 1, m.Flush())
	assert.Zero(t, m.Status().Flows)
}

func TestUndecodableFrameIsFlooded(t *testing.T) {
	for _, mode := range []string{"flood", "learning"} {
		t.Run(mode, func(t *testing.T) {
			m, rec, _ := newManager(t, func(cfg *config.Config) { cfg.Forwarding.Mode = mode })
			runt := []byte{0x00, 0x01, 0x02}

			m.HandlePacketIn(packetIn(runt))

			floods := rec.Ops("flood")
			require.Len(t, floods, 1)
			assert.Equal(t, uint32(1), floods[0].InPort)
			assert.Equal(t, runt, floods[0].Payload)
			assert.Zero(t, m.table.Len())
			assert.Empty(t, m.detector.Counters().Snapshot())
		})
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m, _, _ := newManager(t, nil)
	m.Start()
	m.Stop()
	assert.NotPanics(t, m.Stop)

	unstarted, _, _ := newManager(t, nil)
	assert.NotPanics(t, unstarted.Stop)
	assert.NotPanics(t, unstarted.Stop)
}

func TestFlushAtStampsBatch(t *testing.T) {
	m, _, _ := newManager(t, nil)
	m.HandlePacketIn(packetIn(tcpFrame(t, macM, model.TCPFlags{ACK: true})))
	assert.Equal(t, 1, m.FlushAt(time.Unix(1700000000, 0)))
	assert.Zero(t, m.table.Len())
	assert.Zero(t, m.FlushAt(time.Unix(1700000010, 0)))
}
