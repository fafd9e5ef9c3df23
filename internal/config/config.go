package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig sizes the packet-in worker pool and the flow table.
type EngineConfig struct {
	NumWorkers          int    `yaml:"num_workers"`
	SizeOfPacketChannel int    `yaml:"size_of_packet_channel"`
	FlowShards          uint32 `yaml:"flow_shards"`
}

// DetectionConfig holds the fixed blocking policy.
type DetectionConfig struct {
	PacketThreshold uint64 `yaml:"packet_threshold"`
	SynThreshold    uint64 `yaml:"syn_threshold"`
	BlockPriority   uint16 `yaml:"block_priority"`
	IgnoreLLDP      *bool  `yaml:"ignore_lldp"`
}

// CSVConfig holds settings for the CSV feature writer.
type CSVConfig struct {
	Path string `yaml:"path"`
	// Append keeps an existing dataset instead of truncating it at startup.
	Append bool `yaml:"append"`
}

// GobConfig holds settings for the gob snapshot writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// WriterDef defines one feature writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	CSV        CSVConfig        `yaml:"csv"`
	Gob        GobConfig        `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// EmitterConfig controls the periodic feature flush.
type EmitterConfig struct {
	Period  string      `yaml:"period"`
	Label   string      `yaml:"label"`
	Writers []WriterDef `yaml:"writers"`
}

// ForwardingConfig selects the normal-path behaviour.
type ForwardingConfig struct {
	// Mode is "flood" or "learning".
	Mode            string `yaml:"mode"`
	InstallRules    bool   `yaml:"install_rules"`
	ForwardPriority uint16 `yaml:"forward_priority"`
}

// NATSConfig identifies a NATS server and subject.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// NFTablesConfig names the table the host-enforcement adapter owns.
type NFTablesConfig struct {
	Table string `yaml:"table"`
	Chain string `yaml:"chain"`
}

// ControlPlaneConfig selects the switch adapter: "log", "nats" or "nftables".
type ControlPlaneConfig struct {
	Type     string         `yaml:"type"`
	NATS     NATSConfig     `yaml:"nats"`
	NFTables NFTablesConfig `yaml:"nftables"`
}

// PcapSourceConfig holds live-capture settings.
type PcapSourceConfig struct {
	Interface   string `yaml:"interface"`
	SnapshotLen int32  `yaml:"snapshot_len"`
	Promiscuous bool   `yaml:"promiscuous"`
	// DatapathID and InPort stand in for the switch fields a captured frame lacks.
	DatapathID  uint64 `yaml:"datapath_id"`
	InPort      uint32 `yaml:"in_port"`
}

// SourceConfig selects where packet-ins come from: "pcap" or "nats".
type SourceConfig struct {
	Type       string           `yaml:"type"`
	Pcap       PcapSourceConfig `yaml:"pcap"`
	NATS       NATSConfig       `yaml:"nats"`
	RecordPath string           `yaml:"record_path"`
}

// AlertsConfig controls the Snort alert listener and what happens to alerts.
type AlertsConfig struct {
	Enabled           bool   `yaml:"enabled"`
	SocketPath        string `yaml:"socket_path"`
	MaxDatagram       int    `yaml:"max_datagram"`
	AuditLog          string `yaml:"audit_log"`
	GeoIPDB           string `yaml:"geoip_db"`
	NotifyMaxPriority uint32 `yaml:"notify_max_priority"`
}

// EventsConfig controls publication of alert and block events to NATS.
type EventsConfig struct {
	Enabled bool       `yaml:"enabled"`
	NATS    NATSConfig `yaml:"nats"`
}

// SMTPConfig holds settings for sending email notifications.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// APIConfig holds the listen addresses of the HTTP API and the gRPC health service.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	GRPCAddr   string `yaml:"grpc_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	Engine       EngineConfig       `yaml:"engine"`
	Detection    DetectionConfig    `yaml:"detection"`
	Emitter      EmitterConfig      `yaml:"emitter"`
	Forwarding   ForwardingConfig   `yaml:"forwarding"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	Source       SourceConfig       `yaml:"source"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	Events       EventsConfig       `yaml:"events"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	API          APIConfig          `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct
// with defaults filled in.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration that replays or runs with no external services.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with the engine's stock policy.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Engine.NumWorkers <= 0 {
		c.Engine.NumWorkers = 4
	}
	if c.Engine.SizeOfPacketChannel <= 0 {
		c.Engine.SizeOfPacketChannel = 4096
	}
	if c.Engine.FlowShards == 0 {
		c.Engine.FlowShards = 64
	}
	if c.Detection.PacketThreshold == 0 {
		c.Detection.PacketThreshold = 7
	}
	if c.Detection.SynThreshold == 0 {
		c.Detection.SynThreshold = 10
	}
	if c.Detection.BlockPriority == 0 {
		c.Detection.BlockPriority = 100
	}
	if c.Detection.IgnoreLLDP == nil {
		ignore := true
		c.Detection.IgnoreLLDP = &ignore
	}
	if c.Emitter.Period == "" {
		c.Emitter.Period = "10s"
	}
	if c.Emitter.Label == "" {
		c.Emitter.Label = "normal"
	}
	if c.Forwarding.Mode == "" {
		c.Forwarding.Mode = "flood"
	}
	if c.Forwarding.ForwardPriority == 0 {
		c.Forwarding.ForwardPriority = 1
	}
	if c.ControlPlane.Type == "" {
		c.ControlPlane.Type = "log"
	}
	if c.ControlPlane.NFTables.Table == "" {
		c.ControlPlane.NFTables.Table = "sentry"
	}
	if c.ControlPlane.NFTables.Chain == "" {
		c.ControlPlane.NFTables.Chain = "blocklist"
	}
	if c.Source.Type == "" {
		c.Source.Type = "pcap"
	}
	if c.Source.Pcap.SnapshotLen == 0 {
		c.Source.Pcap.SnapshotLen = 1600
	}
	if c.Source.Pcap.InPort == 0 {
		c.Source.Pcap.InPort = 1
	}
	if c.Source.NATS.Subject == "" {
		c.Source.NATS.Subject = "sentry.packetin"
	}
	if c.Alerts.SocketPath == "" {
		c.Alerts.SocketPath = "/tmp/snort_alert"
	}
	if c.Alerts.MaxDatagram <= 0 {
		c.Alerts.MaxDatagram = 65535
	}
	if c.Alerts.NotifyMaxPriority == 0 {
		c.Alerts.NotifyMaxPriority = 1
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	period, err := time.ParseDuration(c.Emitter.Period)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid emitter period: %w", err))
	} else if period <= 0 {
		errs = append(errs, errors.New("emitter period must be a positive duration"))
	}
	switch c.Emitter.Label {
	case "normal", "attack", "0", "1":
	default:
		errs = append(errs, fmt.Errorf("unknown emitter label '%s'", c.Emitter.Label))
	}
	switch c.Forwarding.Mode {
	case "flood", "learning":
	default:
		errs = append(errs, fmt.Errorf("unknown forwarding mode '%s'", c.Forwarding.Mode))
	}
	switch c.ControlPlane.Type {
	case "log", "nats", "nftables":
	default:
		errs = append(errs, fmt.Errorf("unknown control plane type '%s'", c.ControlPlane.Type))
	}
	switch c.Source.Type {
	case "pcap", "nats":
	default:
		errs = append(errs, fmt.Errorf("unknown source type '%s'", c.Source.Type))
	}
	if c.Detection.BlockPriority <= c.Forwarding.ForwardPriority {
		errs = append(errs, fmt.Errorf("block priority %d must be above forward priority %d",
			c.Detection.BlockPriority, c.Forwarding.ForwardPriority))
	}
	if c.Alerts.MaxDatagram < 284 {
		errs = append(errs, fmt.Errorf("alerts max_datagram %d is below the alert header size", c.Alerts.MaxDatagram))
	}
	return errors.Join(errs...)
}

// EmitterPeriod returns the parsed flush period. Validate guarantees it parses.
func (c *Config) EmitterPeriod() time.Duration {
	d, _ := time.ParseDuration(c.Emitter.Period)
	return d
}
