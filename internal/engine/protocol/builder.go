package protocol

import (
	"fmt"
	"net"

	"Go2NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// FrameSpec describes a synthetic Ethernet frame. Protocol selects the transport:
// layers.IPProtocolTCP, layers.IPProtocolUDP or anything else for a bare IP packet.
type FrameSpec struct {
	SrcMAC, DstMAC   net.HardwareAddr
	SrcIP, DstIP     net.IP
	Protocol         layers.IPProtocol
	SrcPort, DstPort uint16
	Flags            model.TCPFlags
	Payload          []byte
}

// BuildFrame serializes spec into wire bytes with lengths and checksums fixed up.
// IPv6 is used when SrcIP is not an IPv4 address.
func BuildFrame(spec FrameSpec) ([]byte, error) {
	eth := &layers.Ethernet{SrcMAC: spec.SrcMAC, DstMAC: spec.DstMAC}

	var netLayer gopacket.NetworkLayer
	var stack []gopacket.SerializableLayer
	if spec.SrcIP.To4() != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: spec.Protocol, SrcIP: spec.SrcIP.To4(), DstIP: spec.DstIP.To4()}
		netLayer = ip
		stack = append(stack, eth, ip)
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: spec.Protocol, SrcIP: spec.SrcIP, DstIP: spec.DstIP}
		netLayer = ip
		stack = append(stack, eth, ip)
	}

	switch spec.Protocol {
	case layers.IPProtocolTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(spec.SrcPort),
			DstPort: layers.TCPPort(spec.DstPort),
			SYN:     spec.Flags.SYN,
			ACK:     spec.Flags.ACK,
			PSH:     spec.Flags.PSH,
			RST:     spec.Flags.RST,
			Window:  14600,
		}
		if err := tcp.SetNetworkLayerForChecksum(netLayer); err != nil {
			return nil, fmt.Errorf("failed to set tcp checksum layer: %w", err)
		}
		stack = append(stack, tcp)
	case layers.IPProtocolUDP:
		udp := &layers.UDP{SrcPort: layers.UDPPort(spec.SrcPort), DstPort: layers.UDPPort(spec.DstPort)}
		if err := udp.SetNetworkLayerForChecksum(netLayer); err != nil {
			return nil, fmt.Errorf("failed to set udp checksum layer: %w", err)
		}
		stack = append(stack, udp)
	}
	stack = append(stack, gopacket.Payload(spec.Payload))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, fmt.Errorf("failed to serialize frame: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildLinkFrame serializes an Ethernet frame with an arbitrary EtherType and payload,
// e.g. LLDP or ARP chatter.
func BuildLinkFrame(src, dst net.HardwareAddr, etherType uint16, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: layers.EthernetType(etherType)}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("failed to serialize frame: %w", err)
	}
	return buf.Bytes(), nil
}
