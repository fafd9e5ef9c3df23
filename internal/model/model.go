package model

import (
	"net"
	"strconv"
	"time"
)

// NoBuffer marks a packet-in whose frame was not buffered at the switch; the full
// frame travels with the message and must be echoed back in any packet-out.
const NoBuffer uint32 = 0xffffffff

// PortFlood is the reserved output port meaning "all ports except the ingress port".
const PortFlood uint32 = 0xfffffffb

// EtherTypeLLDP frames are link-discovery chatter and never reach the engine logic.
const EtherTypeLLDP uint16 = 0x88cc

// PacketIn is a single frame forwarded to the controller by a switch.
type PacketIn struct {
	DatapathID uint64
	InPort     uint32
	BufferID   uint32
	Timestamp  time.Time
	Data       []byte
}

// Buffered reports whether the switch kept the frame in its own buffer.
func (p *PacketIn) Buffered() bool {
	return p.BufferID != NoBuffer
}

// TCPFlags holds the control bits the engine tracks.
type TCPFlags struct {
	SYN bool
	ACK bool
	PSH bool
	RST bool
}

// SynOnly is true for the opening packet of a handshake: SYN set, ACK clear.
func (f TCPFlags) SynOnly() bool {
	return f.SYN && !f.ACK
}

// HeaderFacts holds the link, network and transport fields decoded from a frame.
// HasNetwork is false when the frame carries no IPv4/IPv6 layer; in that case only
// the link-layer fields are meaningful.
type HeaderFacts struct {
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	EtherType uint16

	HasNetwork bool
	SrcIP      net.IP
	DstIP      net.IP
	Protocol   uint8

	IsTCP    bool
	IsUDP    bool
	SrcPort  uint16
	DstPort  uint16
	TCPFlags TCPFlags

	Length int
}

// Label tags the emitted feature rows with the operator-declared capture mode.
type Label int

const (
	LabelNormal Label = 0
	LabelAttack Label = 1
)

// String returns the operator-facing name of the label.
func (l Label) String() string {
	if l == LabelAttack {
		return "attack"
	}
	return "normal"
}

// ParseLabel accepts "normal"/"attack" as well as the numeric forms "0"/"1".
func ParseLabel(s string) (Label, bool) {
	switch s {
	case "normal", "0":
		return LabelNormal, true
	case "attack", "1":
		return LabelAttack, true
	}
	return LabelNormal, false
}

// FeatureVector is one emitted row describing a single flow over one window.
// Flow is the canonical flow key rendered as text; it is not part of the CSV row.
type FeatureVector struct {
	Flow             string
	Duration         float64
	FwdPackets       uint64
	BwdPackets       uint64
	ByteRate         float64
	SYNCount         uint64
	ACKCount         uint64
	PSHCount         uint64
	RSTCount         uint64
	PacketRate       float64
	MeanPacketLength float64
	MeanIAT          float64
	Protocol         uint8
	Label            Label
}

// FeatureHeader is the column order of a feature row.
var FeatureHeader = []string{
	"Flow Duration", "Tot Fwd Pkts", "Tot Bwd Pkts", "Flow Byts/s",
	"SYN Flag Cnt", "ACK Flag Cnt", "PSH Flag Cnt", "RST Flag Cnt",
	"Flow Pkts/s", "Pkt Len Mean", "Flow IAT Mean", "Protocol", "Label",
}

// Row renders the vector in FeatureHeader order. Time fields carry 4 decimals,
// rate and length fields 2.
func (v FeatureVector) Row() []string {
	return []string{
		strconv.FormatFloat(v.Duration, 'f', -1, 64),
		strconv.FormatUint(v.FwdPackets, 10),
		strconv.FormatUint(v.BwdPackets, 10),
		strconv.FormatFloat(v.ByteRate, 'f', -1, 64),
		strconv.FormatUint(v.SYNCount, 10),
		strconv.FormatUint(v.ACKCount, 10),
		strconv.FormatUint(v.PSHCount, 10),
		strconv.FormatUint(v.RSTCount, 10),
		strconv.FormatFloat(v.PacketRate, 'f', -1, 64),
		strconv.FormatFloat(v.MeanPacketLength, 'f', -1, 64),
		strconv.FormatFloat(v.MeanIAT, 'f', -1, 64),
		strconv.Itoa(int(v.Protocol)),
		strconv.Itoa(int(v.Label)),
	}
}

// FeatureBatch is everything emitted for one window.
type FeatureBatch struct {
	Timestamp time.Time
	Vectors   []FeatureVector
}
