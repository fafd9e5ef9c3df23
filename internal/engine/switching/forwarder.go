package switching

import (
	"fmt"
	"net"
	"sync"

	"Go2NetSentry/internal/model"
)

// Mode selects how normal-path packets are forwarded.
type Mode string

const (
	// ModeFlood sends every packet out of all ports except the ingress port.
	ModeFlood Mode = "flood"
	// ModeLearning learns source MACs per datapath and forwards to the learned port.
	ModeLearning Mode = "learning"
)

// Forwarder is the fallback for packets that were neither blocked nor dropped.
type Forwarder struct {
	cp           model.ControlPlane
	mode         Mode
	installRules bool
	priority     uint16

	mu        sync.Mutex
	macToPort map[uint64]map[string]uint32
}

// New creates a forwarder. installRules only matters in learning mode: when false no
// forwarding rule is ever installed, so every packet keeps reaching the controller.
func New(cp model.ControlPlane, mode Mode, installRules bool, priority uint16) *Forwarder {
	return &Forwarder{
		cp:           cp,
		mode:         mode,
		installRules: installRules,
		priority:     priority,
		macToPort:    make(map[uint64]map[string]uint32),
	}
}

// Forward emits the packet-out for pin. src and dst are the frame's Ethernet addresses.
func (f *Forwarder) Forward(pin *model.PacketIn, src, dst net.HardwareAddr) error {
	var payload []byte
	if !pin.Buffered() {
		payload = pin.Data
	}

	if f.mode != ModeLearning {
		return f.flood(pin, payload)
	}

	outPort, known := f.learn(pin.DatapathID, src, dst, pin.InPort)
	if !known {
		return f.flood(pin, payload)
	}

	if f.installRules {
		if err := f.cp.InstallForwardRule(pin.DatapathID, pin.InPort, dst, outPort, f.priority); err != nil {
			return fmt.Errorf("install forward rule on dpid %d: %w", pin.DatapathID, err)
		}
	}
	actions := []model.OutputAction{{Port: outPort}}
	if err := f.cp.SendPacketOut(pin.DatapathID, pin.BufferID, pin.InPort, actions, payload); err != nil {
		return fmt.Errorf("packet-out on dpid %d: %w", pin.DatapathID, err)
	}
	return nil
}

// Flood sends pin out of every port but its ingress whatever the mode. It is the
// path for frames whose addresses could not be decoded.
func (f *Forwarder) Flood(pin *model.PacketIn) error {
	var payload []byte
	if !pin.Buffered() {
		payload = pin.Data
	}
	return f.flood(pin, payload)
}

func (f *Forwarder) flood(pin *model.PacketIn, payload []byte) error {
	if err := f.cp.FloodExcept(pin.DatapathID, pin.InPort, pin.BufferID, payload); err != nil {
		return fmt.Errorf("flood on dpid %d: %w", pin.DatapathID, err)
	}
	return nil
}

// learn records src on inPort and looks up dst.
func (f *Forwarder) learn(dpid uint64, src, dst net.HardwareAddr, inPort uint32) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, ok := f.macToPort[dpid]
	if !ok {
		table = make(map[string]uint32)
		f.macToPort[dpid] = table
	}
	table[src.String()] = inPort
	out, ok := table[dst.String()]
	return out, ok
}

// Port returns the learned port of mac on dpid.
func (f *Forwarder) Port(dpid uint64, mac net.HardwareAddr) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.macToPort[dpid][mac.String()]
	return p, ok
}
