package controlplane

import (
	"log/slog"
	"net"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/factory"
	"Go2NetSentry/internal/model"
)

func init() {
	factory.RegisterControlPlane("log", func(*config.Config) (model.ControlPlane, error) {
		return NewLog(), nil
	})
}

// Log is a dry-run control plane: rule installs are logged at info level and
// packet-outs at debug level, and nothing leaves the process.
type Log struct{}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) InstallTableMiss(dpid uint64) error {
	slog.Info("control plane: table-miss", "dpid", dpid, "priority", 0)
	return nil
}

func (l *Log) InstallDropRule(dpid uint64, src net.HardwareAddr, priority uint16) error {
	slog.Info("control plane: drop rule", "dpid", dpid, "eth_src", src.String(), "priority", priority)
	return nil
}

func (l *Log) InstallForwardRule(dpid uint64, inPort uint32, dst net.HardwareAddr, outPort uint32, priority uint16) error {
	slog.Info("control plane: forward rule", "dpid", dpid, "in_port", inPort, "eth_dst", dst.String(),
		"out_port", outPort, "priority", priority)
	return nil
}

func (l *Log) FloodExcept(dpid uint64, inPort uint32, bufferID uint32, payload []byte) error {
	slog.Debug("control plane: flood", "dpid", dpid, "in_port", inPort, "buffer_id", bufferID, "bytes", len(payload))
	return nil
}

func (l *Log) SendPacketOut(dpid uint64, bufferID uint32, inPort uint32, actions []model.OutputAction, payload []byte) error {
	slog.Debug("control plane: packet-out", "dpid", dpid, "in_port", inPort, "buffer_id", bufferID,
		"actions", len(actions), "bytes", len(payload))
	return nil
}

func (l *Log) Close() error {
	return nil
}
