package pcap

import (
	"fmt"

	"Go2NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// Reader reads frames from a pcap file and presents them as packet-ins from a
// single switch port.
type Reader struct {
	handle *pcap.Handle
	dpid   uint64
	inPort uint32
}

// NewReader creates a new pcap reader for the given file path.
func NewReader(filePath string, dpid uint64, inPort uint32) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file '%s': %w", filePath, err)
	}
	return &Reader{handle: handle, dpid: dpid, inPort: inPort}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadPackets sends every frame in the file to out, stamped with its capture time,
// and closes out when the file is exhausted. It returns the number of frames read.
func (r *Reader) ReadPackets(out chan<- *model.PacketIn) int {
	defer close(out)
	count := 0
	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range packetSource.Packets() {
		out <- ToPacketIn(packet, r.dpid, r.inPort)
		count++
	}
	return count
}

// ToPacketIn wraps a captured frame as an unbuffered packet-in.
func ToPacketIn(packet gopacket.Packet, dpid uint64, inPort uint32) *model.PacketIn {
	md := packet.Metadata()
	return &model.PacketIn{
		DatapathID: dpid,
		InPort:     inPort,
		BufferID:   model.NoBuffer,
		Timestamp:  md.Timestamp,
		Data:       packet.Data(),
	}
}
