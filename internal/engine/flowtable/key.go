package flowtable

import (
	"encoding/binary"
	"hash/fnv"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// FlowKey identifies a bidirectional flow. The two addresses are stored in sorted
// order so that A->B and B->A map to the same key. The ports keep the position they
// had in the packet that created the key and are never swapped.
type FlowKey struct {
	AddrLow  netip.Addr
	AddrHigh netip.Addr
	Protocol uint8
	SrcPort  uint16
	DstPort  uint16
}

// NewFlowKey canonicalizes a packet's endpoints. fromLow reports whether the packet
// was sent by the lower endpoint, which is what the table counts as "forward".
func NewFlowKey(src, dst net.IP, protocol uint8, srcPort, dstPort uint16) (key FlowKey, fromLow bool) {
	s := toAddr(src)
	d := toAddr(dst)
	key = FlowKey{Protocol: protocol, SrcPort: srcPort, DstPort: dstPort}
	if s.Compare(d) <= 0 {
		key.AddrLow, key.AddrHigh = s, d
		return key, true
	}
	key.AddrLow, key.AddrHigh = d, s
	return key, false
}

// toAddr converts to netip, unmapping IPv4-in-IPv6 so both encodings of an IPv4
// address compare equal.
func toAddr(ip net.IP) netip.Addr {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return a.Unmap()
}

// String renders the key as "low-high-proto-sport-dport".
func (k FlowKey) String() string {
	parts := []string{
		k.AddrLow.String(),
		k.AddrHigh.String(),
		strconv.Itoa(int(k.Protocol)),
		strconv.Itoa(int(k.SrcPort)),
		strconv.Itoa(int(k.DstPort)),
	}
	return strings.Join(parts, "-")
}

// hash returns the fnv-1a hash used to pick the key's shard.
func (k FlowKey) hash() uint32 {
	var buf [16 + 16 + 1 + 2 + 2]byte
	lo := k.AddrLow.As16()
	hi := k.AddrHigh.As16()
	copy(buf[0:16], lo[:])
	copy(buf[16:32], hi[:])
	buf[32] = k.Protocol
	binary.BigEndian.PutUint16(buf[33:35], k.SrcPort)
	binary.BigEndian.PutUint16(buf[35:37], k.DstPort)
	hasher := fnv.New32a()
	hasher.Write(buf[:])
	return hasher.Sum32()
}
