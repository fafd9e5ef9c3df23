package controlplane

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/factory"
	"Go2NetSentry/internal/model"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func init() {
	factory.RegisterControlPlane("nats", func(cfg *config.Config) (model.ControlPlane, error) {
		return DialNATS(cfg.ControlPlane.NATS)
	})
}

// Command operations understood by the switch agent.
const (
	OpTableMiss   = "table_miss"
	OpDrop        = "drop"
	OpForward     = "forward"
	OpFlood       = "flood"
	OpPacketOut   = "packet_out"
	defaultPrefix = "sentry.ctl"
)

// Command is the decoded form of a control message.
type Command struct {
	Op       string
	DPID     uint64
	Priority uint16
	MAC      net.HardwareAddr
	InPort   uint32
	OutPort  uint32
	BufferID uint32
	Ports    []uint32
	Payload  []byte
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS sends control commands to a switch agent as protobuf Struct messages on
// "<prefix>.<dpid>". The agent owns the OpenFlow session.
type NATS struct {
	nc     *nats.Conn
	pub    publisher
	prefix string
}

// DialNATS connects to the NATS server in cfg.
func DialNATS(cfg config.NATSConfig) (*NATS, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect control plane to NATS at %s: %w", cfg.URL, err)
	}
	slog.Info("control plane connected to NATS", "url", cfg.URL, "subject", cfg.Subject)
	n := newNATS(nc, cfg.Subject)
	n.nc = nc
	return n, nil
}

func newNATS(pub publisher, prefix string) *NATS {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &NATS{pub: pub, prefix: prefix}
}

// Subject returns the subject commands for dpid are published on.
func (n *NATS) Subject(dpid uint64) string {
	return n.prefix + "." + strconv.FormatUint(dpid, 10)
}

func (n *NATS) send(cmd Command) error {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := n.pub.Publish(n.Subject(cmd.DPID), data); err != nil {
		return fmt.Errorf("failed to publish %s command: %w", cmd.Op, err)
	}
	return nil
}

func (n *NATS) InstallTableMiss(dpid uint64) error {
	return n.send(Command{Op: OpTableMiss, DPID: dpid})
}

func (n *NATS) InstallDropRule(dpid uint64, src net.HardwareAddr, priority uint16) error {
	return n.send(Command{Op: OpDrop, DPID: dpid, MAC: src, Priority: priority})
}

func (n *NATS) InstallForwardRule(dpid uint64, inPort uint32, dst net.HardwareAddr, outPort uint32, priority uint16) error {
	return n.send(Command{Op: OpForward, DPID: dpid, InPort: inPort, MAC: dst, OutPort: outPort, Priority: priority})
}

func (n *NATS) FloodExcept(dpid uint64, inPort uint32, bufferID uint32, payload []byte) error {
	return n.send(Command{Op: OpFlood, DPID: dpid, InPort: inPort, BufferID: bufferID, Payload: payload})
}

func (n *NATS) SendPacketOut(dpid uint64, bufferID uint32, inPort uint32, actions []model.OutputAction, payload []byte) error {
	ports := make([]uint32, len(actions))
	for i, a := range actions {
		ports[i] = a.Port
	}
	return n.send(Command{Op: OpPacketOut, DPID: dpid, InPort: inPort, BufferID: bufferID, Ports: ports, Payload: payload})
}

// Close drains and closes the NATS connection.
func (n *NATS) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}

// EncodeCommand serializes cmd as a protobuf Struct. The datapath id is carried as a
// decimal string because Struct numbers are doubles.
func EncodeCommand(cmd Command) ([]byte, error) {
	fields := map[string]any{
		"op":   cmd.Op,
		"dpid": strconv.FormatUint(cmd.DPID, 10),
	}
	switch cmd.Op {
	case OpDrop:
		fields["eth_src"] = cmd.MAC.String()
		fields["priority"] = float64(cmd.Priority)
	case OpForward:
		fields["eth_dst"] = cmd.MAC.String()
		fields["in_port"] = float64(cmd.InPort)
		fields["out_port"] = float64(cmd.OutPort)
		fields["priority"] = float64(cmd.Priority)
	case OpFlood, OpPacketOut:
		fields["in_port"] = float64(cmd.InPort)
		fields["buffer_id"] = float64(cmd.BufferID)
		ports := make([]any, len(cmd.Ports))
		for i, p := range cmd.Ports {
			ports[i] = float64(p)
		}
		fields["ports"] = ports
		if len(cmd.Payload) > 0 {
			fields["payload"] = base64.StdEncoding.EncodeToString(cmd.Payload)
		}
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s command: %w", cmd.Op, err)
	}
	return proto.Marshal(s)
}

// DecodeCommand parses a message produced by EncodeCommand.
func DecodeCommand(data []byte) (Command, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return Command{}, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	f := s.GetFields()
	cmd := Command{Op: f["op"].GetStringValue()}
	if cmd.Op == "" {
		return Command{}, errors.New("command has no op")
	}
	dpid, err := strconv.ParseUint(f["dpid"].GetStringValue(), 10, 64)
	if err != nil {
		return Command{}, fmt.Errorf("invalid dpid in command: %w", err)
	}
	cmd.DPID = dpid
	cmd.Priority = uint16(f["priority"].GetNumberValue())
	cmd.InPort = uint32(f["in_port"].GetNumberValue())
	cmd.OutPort = uint32(f["out_port"].GetNumberValue())
	cmd.BufferID = uint32(f["buffer_id"].GetNumberValue())
	for _, v := range f["ports"].GetListValue().GetValues() {
		cmd.Ports = append(cmd.Ports, uint32(v.GetNumberValue()))
	}
	for _, key := range []string{"eth_src", "eth_dst"} {
		if v := f[key].GetStringValue(); v != "" {
			mac, err := net.ParseMAC(v)
			if err != nil {
				return Command{}, fmt.Errorf("invalid %s in command: %w", key, err)
			}
			cmd.MAC = mac
		}
	}
	if p := f["payload"].GetStringValue(); p != "" {
		payload, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return Command{}, fmt.Errorf("invalid payload in command: %w", err)
		}
		cmd.Payload = payload
	}
	return cmd, nil
}
