package model

import "time"

// BlockEvent is published when a host crosses a threshold and a drop rule is requested.
type BlockEvent struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	DatapathID uint64    `json:"datapath_id"`
	MAC        string    `json:"mac"`
	Reason     string    `json:"reason"`
	Packets    uint64    `json:"packets"`
	SynOnly    uint64    `json:"syn_only"`
	// RuleError is set when the control plane rejected the drop rule. The host stays
	// in the registry regardless.
	RuleError string `json:"rule_error,omitempty"`
}

// AlertEvent is an IDS alert correlated with the engine's view of its source host.
type AlertEvent struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Message    string    `json:"message"`
	EventID    uint32    `json:"event_id"`
	Priority   uint32    `json:"priority"`
	FrameBytes int       `json:"frame_bytes"`

	SrcMAC   string `json:"src_mac,omitempty"`
	DstMAC   string `json:"dst_mac,omitempty"`
	SrcIP    string `json:"src_ip,omitempty"`
	DstIP    string `json:"dst_ip,omitempty"`
	Protocol uint8  `json:"protocol,omitempty"`
	SrcPort  uint16 `json:"src_port,omitempty"`
	DstPort  uint16 `json:"dst_port,omitempty"`

	SrcCountry string `json:"src_country,omitempty"`
	SrcBlocked bool   `json:"src_blocked"`
	SrcPackets uint64 `json:"src_packets"`
	SrcSynOnly uint64 `json:"src_syn_only"`
}

// EventSink receives block and alert events. Implementations must be safe for
// concurrent use: the packet workers and the alert listener publish independently.
type EventSink interface {
	PublishBlock(ev BlockEvent) error
	PublishAlert(ev AlertEvent) error
	Close() error
}
