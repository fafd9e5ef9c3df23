package detector

import (
	"time"
)

// Reason names the rule that triggered a block.
type Reason string

const (
	ReasonPacketRate Reason = "packet_rate"
	ReasonSynFlood   Reason = "syn_flood"
)

// Thresholds are exclusive: a host is blocked once its count exceeds the value.
type Thresholds struct {
	Packets uint64
	Syn     uint64
}

// DefaultThresholds block after the 8th packet or the 11th bare SYN.
var DefaultThresholds = Thresholds{Packets: 7, Syn: 10}

// Decision is the outcome of inspecting one packet.
type Decision struct {
	// Block is true when the packet pushed its source over a threshold. The packet
	// must not be forwarded.
	Block bool
	// Install is true for the single caller that moved the host into the registry
	// and must install the drop rule.
	Install bool
	Reason  Reason
	State   HostState
}

// Detector applies the threshold rules to each packet's source.
type Detector struct {
	counters   *HostCounters
	registry   *BlockRegistry
	thresholds Thresholds
	now        func() time.Time
}

func New(counters *HostCounters, registry *BlockRegistry, thresholds Thresholds) *Detector {
	return &Detector{
		counters:   counters,
		registry:   registry,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Inspect counts a packet from mac and decides whether the host must be blocked.
// isTCP and synOnly describe the current packet; the SYN rule only fires on a bare
// SYN. The caller checks IsBlocked before calling Inspect.
func (d *Detector) Inspect(dpid uint64, mac string, isTCP, synOnly bool) Decision {
	synOnly = isTCP && synOnly
	st := d.counters.Record(mac, synOnly)

	dec := Decision{State: st}
	switch {
	case st.Packets > d.thresholds.Packets:
		dec.Reason = ReasonPacketRate
	case synOnly && st.SynOnly > d.thresholds.Syn:
		dec.Reason = ReasonSynFlood
	default:
		return dec
	}

	dec.Block = true
	dec.Install = d.registry.TryBlock(BlockEntry{
		MAC:        mac,
		Reason:     dec.Reason,
		DatapathID: dpid,
		BlockedAt:  d.now(),
	})
	return dec
}

// Counters returns the host counters the detector updates.
func (d *Detector) Counters() *HostCounters {
	return d.counters
}

// Registry returns the block registry the detector fills.
func (d *Detector) Registry() *BlockRegistry {
	return d.registry
}
