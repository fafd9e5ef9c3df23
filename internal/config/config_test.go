package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(7), cfg.Detection.PacketThreshold)
	assert.Equal(t, uint64(10), cfg.Detection.SynThreshold)
	assert.Equal(t, uint16(100), cfg.Detection.BlockPriority)
	require.NotNil(t, cfg.Detection.IgnoreLLDP)
	assert.True(t, *cfg.Detection.IgnoreLLDP)
	assert.Equal(t, 10*time.Second, cfg.EmitterPeriod())
	assert.Equal(t, "/tmp/snort_alert", cfg.Alerts.SocketPath)
	assert.Equal(t, 65535, cfg.Alerts.MaxDatagram)
	assert.Equal(t, "log", cfg.ControlPlane.Type)
	assert.Equal(t, "flood", cfg.Forwarding.Mode)
	assert.Equal(t, uint32(1), cfg.Source.Pcap.InPort)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	cfg, err := Parse([]byte(`
detection:
  packet_threshold: 50
  ignore_lldp: false
emitter:
  period: 500ms
  label: attack
forwarding:
  mode: learning
  install_rules: true
`))
	require.NoError(t, err)
	assert.Equal(t, uint64(50), cfg.Detection.PacketThreshold)
	assert.Equal(t, uint64(10), cfg.Detection.SynThreshold)
	assert.False(t, *cfg.Detection.IgnoreLLDP)
	assert.Equal(t, 500*time.Millisecond, cfg.EmitterPeriod())
	assert.Equal(t, "attack", cfg.Emitter.Label)
	assert.True(t, cfg.Forwarding.InstallRules)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
emitter:
  period: soon
  label: maybe
forwarding:
  mode: hub
  forward_priority: 200
control_plane:
  type: openflow
`))
	require.Error(t, err)
	for _, want := range []string{"emitter period", "label 'maybe'", "forwarding mode 'hub'", "control plane type 'openflow'", "block priority"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Emitter.Writers, 3)
	assert.Equal(t, "csv", cfg.Emitter.Writers[0].Type)
	assert.Equal(t, ":9090", cfg.API.GRPCAddr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
