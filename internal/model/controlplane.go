package model

import "net"

// OutputAction forwards a frame out of a switch port.
type OutputAction struct {
	Port uint32
}

// ControlPlane is the switch-facing adapter. Calls are fire-and-forget: an error
// means the command could not be handed to the data plane, and callers log it
// without retrying.
type ControlPlane interface {
	// InstallTableMiss installs the lowest-priority rule sending unmatched traffic to the controller.
	InstallTableMiss(dpid uint64) error

	// InstallDropRule installs a rule dropping every frame whose Ethernet source is src.
	InstallDropRule(dpid uint64, src net.HardwareAddr, priority uint16) error

	// InstallForwardRule installs a rule matching (inPort, dst) and outputting to outPort.
	InstallForwardRule(dpid uint64, inPort uint32, dst net.HardwareAddr, outPort uint32, priority uint16) error

	// FloodExcept outputs the frame on every port but inPort. payload is nil for buffered frames.
	FloodExcept(dpid uint64, inPort uint32, bufferID uint32, payload []byte) error

	// SendPacketOut releases a buffered frame or injects payload with the given actions.
	SendPacketOut(dpid uint64, bufferID uint32, inPort uint32, actions []OutputAction, payload []byte) error

	// Close releases the adapter's connection.
	Close() error
}
