package protocol

import (
	"errors"

	"Go2NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNotEthernet is returned when a frame does not start with an Ethernet header.
var ErrNotEthernet = errors.New("frame has no ethernet layer")

// ParsePacket uses gopacket to decode a raw Ethernet frame and extract the fields the
// engine cares about. A frame without an IPv4/IPv6 layer is not an error: the result
// has HasNetwork set to false and only the link-layer fields filled in.
func ParsePacket(data []byte) (*model.HeaderFacts, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	l := packet.Layer(layers.LayerTypeEthernet)
	if l == nil {
		return nil, ErrNotEthernet
	}
	eth := l.(*layers.Ethernet)

	facts := &model.HeaderFacts{
		SrcMAC:    eth.SrcMAC,
		DstMAC:    eth.DstMAC,
		EtherType: uint16(eth.EthernetType),
		Length:    len(data),
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		facts.HasNetwork = true
		facts.SrcIP = ip.SrcIP
		facts.DstIP = ip.DstIP
		facts.Protocol = uint8(ip.Protocol)
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		facts.HasNetwork = true
		facts.SrcIP = ip.SrcIP
		facts.DstIP = ip.DstIP
		facts.Protocol = uint8(ipv6UpperProtocol(packet, ip))
	} else {
		return facts, nil
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		facts.IsTCP = true
		facts.Protocol = uint8(layers.IPProtocolTCP)
		facts.SrcPort = uint16(tcp.SrcPort)
		facts.DstPort = uint16(tcp.DstPort)
		facts.TCPFlags = model.TCPFlags{SYN: tcp.SYN, ACK: tcp.ACK, PSH: tcp.PSH, RST: tcp.RST}
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		facts.IsUDP = true
		facts.Protocol = uint8(layers.IPProtocolUDP)
		facts.SrcPort = uint16(udp.SrcPort)
		facts.DstPort = uint16(udp.DstPort)
	}

	return facts, nil
}

// ipv6UpperProtocol follows the extension header chain to the protocol it ends in.
func ipv6UpperProtocol(packet gopacket.Packet, ip *layers.IPv6) layers.IPProtocol {
	proto := ip.NextHeader
	if ip.HopByHop != nil {
		proto = ip.HopByHop.NextHeader
	}
	for _, l := range packet.Layers() {
		switch ext := l.(type) {
		case *layers.IPv6Routing:
			proto = ext.NextHeader
		case *layers.IPv6Fragment:
			proto = ext.NextHeader
		case *layers.IPv6Destination:
			proto = ext.NextHeader
		}
	}
	return proto
}
