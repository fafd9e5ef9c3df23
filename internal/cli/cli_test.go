package cli

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Go2NetSentry/internal/engine/protocol"
	"Go2NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSynFlood(t *testing.T, path string, n int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(1600, layers.LinkTypeEthernet))
	start := time.Unix(1700000000, 0)
	for i := 0; i < n; i++ {
		frame, err := protocol.BuildFrame(protocol.FrameSpec{
			SrcMAC: net.HardwareAddr{0, 0, 0, 0, 0, 0x0a}, DstMAC: net.HardwareAddr{0, 0, 0, 0, 0, 0x0b},
			SrcIP: net.ParseIP("10.0.0.10"), DstIP: net.ParseIP("10.0.0.20"),
			Protocol: layers.IPProtocolTCP, SrcPort: uint16(40000 + i), DstPort: 80,
			Flags: model.TCPFlags{SYN: true},
		})
		require.NoError(t, err)
		ci := gopacket.CaptureInfo{Timestamp: start.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(frame), Length: len(frame)}
		require.NoError(t, w.WritePacket(ci, frame))
	}
}

func TestReplayWritesFeaturesAndBlocks(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "flood.pcap")
	writeSynFlood(t, capture, 20)

	csvPath := filepath.Join(dir, "features.csv")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
log_level: error
engine:
  num_workers: 1
emitter:
  period: 1h
  writers:
    - type: csv
      enabled: true
      csv:
        path: %s
`, csvPath)), 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", capture, "--config", cfgPath, "--label", "attack"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "replayed 20 frames, 1 hosts blocked")
	assert.Contains(t, out.String(), "blocked 00:00:00:00:00:0a (packet_rate)")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 9, "header plus one row per flow seen before the block")
	assert.Equal(t, model.FeatureHeader, rows[0])
	for _, row := range rows[1:] {
		assert.Equal(t, "1", row[len(row)-1])
	}
}

func TestReplayWindowsFollowCaptureTime(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "spread.pcap")
	f, err := os.Create(capture)
	require.NoError(t, err)
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(1600, layers.LinkTypeEthernet))
	frame, err := protocol.BuildFrame(protocol.FrameSpec{
		SrcMAC: net.HardwareAddr{0, 0, 0, 0, 0, 0x0c}, DstMAC: net.HardwareAddr{0, 0, 0, 0, 0, 0x0d},
		SrcIP: net.ParseIP("10.0.0.30"), DstIP: net.ParseIP("10.0.0.40"),
		Protocol: layers.IPProtocolTCP, SrcPort: 50000, DstPort: 22,
		Flags: model.TCPFlags{ACK: true},
	})
	require.NoError(t, err)
	start := time.Unix(1700000000, 0)
	for _, offset := range []time.Duration{0, 500 * time.Millisecond, 2500 * time.Millisecond, 7 * time.Second} {
		ci := gopacket.CaptureInfo{Timestamp: start.Add(offset), CaptureLength: len(frame), Length: len(frame)}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	require.NoError(t, f.Close())

	csvPath := filepath.Join(dir, "features.csv")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
log_level: error
emitter:
  period: 1s
  writers:
    - type: csv
      enabled: true
      csv:
        path: %s
`, csvPath)), 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", capture, "--config", cfgPath, "--label", "normal"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "replayed 4 frames, 0 hosts blocked")

	rows := readRows(t, csvPath)
	require.Len(t, rows, 4, "header plus one row per capture-time window with traffic")
	assert.Equal(t, []string{"0.5", "2"}, rows[1][:2])
	assert.Equal(t, []string{"0.001", "1"}, rows[2][:2])
	assert.Equal(t, []string{"0.001", "1"}, rows[3][:2])
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestDatapathSetConnectsOnce(t *testing.T) {
	var got []uint64
	s := newDatapathSet(func(dpid uint64) { got = append(got, dpid) })
	for _, id := range []uint64{1, 2, 1, 1, 3, 2} {
		s.observe(id)
	}
	assert.Equal(t, []uint64{1, 2, 3}, got)
}
