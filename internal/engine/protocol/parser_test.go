package protocol

import (
	"encoding/binary"
	"net"
	"testing"

	"Go2NetSentry/internal/model"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	macA = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	macB = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func TestParsePacketTCP(t *testing.T) {
	frame, err := BuildFrame(FrameSpec{
		SrcMAC: macA, DstMAC: macB,
		SrcIP: net.ParseIP("10.0.0.1"), DstIP: net.ParseIP("10.0.0.2"),
		Protocol: layers.IPProtocolTCP, SrcPort: 1000, DstPort: 80,
		Flags: model.TCPFlags{SYN: true},
	})
	require.NoError(t, err)

	facts, err := ParsePacket(frame)
	require.NoError(t, err)
	assert.True(t, facts.HasNetwork)
	assert.True(t, facts.IsTCP)
	assert.Equal(t, macA.String(), facts.SrcMAC.String())
	assert.Equal(t, macB.String(), facts.DstMAC.String())
	assert.Equal(t, "10.0.0.1", facts.SrcIP.String())
	assert.Equal(t, "10.0.0.2", facts.DstIP.String())
	assert.Equal(t, uint8(6), facts.Protocol)
	assert.Equal(t, uint16(1000), facts.SrcPort)
	assert.Equal(t, uint16(80), facts.DstPort)
	assert.True(t, facts.TCPFlags.SynOnly())
	assert.Equal(t, len(frame), facts.Length)
}

func TestParsePacketUDPv6(t *testing.T) {
	frame, err := BuildFrame(FrameSpec{
		SrcMAC: macA, DstMAC: macB,
		SrcIP: net.ParseIP("2001:db8::1"), DstIP: net.ParseIP("2001:db8::2"),
		Protocol: layers.IPProtocolUDP, SrcPort: 5353, DstPort: 53,
	})
	require.NoError(t, err)

	facts, err := ParsePacket(frame)
	require.NoError(t, err)
	assert.True(t, facts.HasNetwork)
	assert.True(t, facts.IsUDP)
	assert.False(t, facts.IsTCP)
	assert.Equal(t, uint8(17), facts.Protocol)
	assert.Equal(t, "2001:db8::1", facts.SrcIP.String())
	assert.Equal(t, uint16(53), facts.DstPort)
}

func TestParsePacketICMPHasNoPorts(t *testing.T) {
	frame, err := BuildFrame(FrameSpec{
		SrcMAC: macA, DstMAC: macB,
		SrcIP: net.ParseIP("10.0.0.1"), DstIP: net.ParseIP("10.0.0.2"),
		Protocol: layers.IPProtocolICMPv4,
	})
	require.NoError(t, err)

	facts, err := ParsePacket(frame)
	require.NoError(t, err)
	assert.True(t, facts.HasNetwork)
	assert.Equal(t, uint8(1), facts.Protocol)
	assert.Zero(t, facts.SrcPort)
	assert.Zero(t, facts.DstPort)
}

func TestParsePacketLinkOnly(t *testing.T) {
	frame, err := BuildLinkFrame(macA, macB, model.EtherTypeLLDP, make([]byte, 46))
	require.NoError(t, err)

	facts, err := ParsePacket(frame)
	require.NoError(t, err)
	assert.False(t, facts.HasNetwork)
	assert.Equal(t, model.EtherTypeLLDP, facts.EtherType)
	assert.Equal(t, macA.String(), facts.SrcMAC.String())
}

func TestParsePacketGarbage(t *testing.T) {
	_, err := ParsePacket([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrNotEthernet)
}

func TestParsePacketIPv6HopByHopReportsTransport(t *testing.T) {
	frame, err := BuildFrame(FrameSpec{
		SrcMAC: macA, DstMAC: macB,
		SrcIP: net.ParseIP("2001:db8::1"), DstIP: net.ParseIP("2001:db8::2"),
		Protocol: layers.IPProtocolTCP, SrcPort: 40000, DstPort: 443,
		Flags: model.TCPFlags{SYN: true},
	})
	require.NoError(t, err)

	// Splice an 8-byte hop-by-hop header (next header TCP, six Pad1 options)
	// between the IPv6 header and the TCP segment.
	const ipStart, ipEnd = 14, 14 + 40
	hbh := []byte{byte(layers.IPProtocolTCP), 0, 0, 0, 0, 0, 0, 0}
	withExt := append(append(append([]byte{}, frame[:ipEnd]...), hbh...), frame[ipEnd:]...)
	withExt[ipStart+6] = byte(layers.IPProtocolIPv6HopByHop)
	plen := binary.BigEndian.Uint16(withExt[ipStart+4:]) + uint16(len(hbh))
	binary.BigEndian.PutUint16(withExt[ipStart+4:], plen)

	facts, err := ParsePacket(withExt)
	require.NoError(t, err)
	assert.True(t, facts.HasNetwork)
	assert.True(t, facts.IsTCP)
	assert.Equal(t, uint8(6), facts.Protocol)
	assert.Equal(t, uint16(443), facts.DstPort)
	assert.True(t, facts.TCPFlags.SynOnly())
}
