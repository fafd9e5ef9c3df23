package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"Go2NetSentry/internal/engine/protocol"
	"Go2NetSentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Hosts in normal mode stay at or below this many packets so that replaying the
// capture does not trip the packet threshold.
const packetsPerHost = 7

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	hosts := flag.Int("hosts", 20, "Number of well-behaved hosts")
	flood := flag.Int("flood", 0, "Number of SYN flood packets from the attacker (0 for a normal capture)")
	lldp := flag.Bool("lldp", true, "Interleave LLDP frames")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	g := &generator{w: pcapWriter, rng: rng, ts: time.Now()}
	server := hostAddr(250)

	for h := 0; h < *hosts; h++ {
		client := hostAddr(h + 1)
		n := rng.Intn(packetsPerHost) + 1
		sport := uint16(rng.Intn(65535-1024) + 1024)
		for i := 0; i < n; i++ {
			flags := model.TCPFlags{ACK: true, PSH: i%2 == 1}
			if i == 0 {
				flags = model.TCPFlags{SYN: true}
			}
			proto := layers.IPProtocolTCP
			if h%4 == 3 {
				proto = layers.IPProtocolUDP
			}
			g.write(protocol.FrameSpec{
				SrcMAC: client.mac, DstMAC: server.mac, SrcIP: client.ip, DstIP: server.ip,
				Protocol: proto, SrcPort: sport, DstPort: 80, Flags: flags,
				Payload: make([]byte, rng.Intn(1400)),
			})
		}
		if *lldp && h%5 == 0 {
			g.writeLLDP(client.mac)
		}
	}

	attacker := hostAddr(200)
	for i := 0; i < *flood; i++ {
		g.write(protocol.FrameSpec{
			SrcMAC: attacker.mac, DstMAC: server.mac, SrcIP: attacker.ip, DstIP: server.ip,
			Protocol: layers.IPProtocolTCP, SrcPort: uint16(rng.Intn(65535-1024) + 1024), DstPort: 80,
			Flags: model.TCPFlags{SYN: true},
		})
	}

	log.Printf("Wrote %d packets to %s (hosts=%d, flood=%d)", g.count, *outputFile, *hosts, *flood)
}

type host struct {
	mac net.HardwareAddr
	ip  net.IP
}

func hostAddr(n int) host {
	return host{
		mac: net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, byte(n)},
		ip:  net.IPv4(10, 0, 0, byte(n)),
	}
}

type generator struct {
	w     *pcapgo.Writer
	rng   *rand.Rand
	ts    time.Time
	count int
}

func (g *generator) write(spec protocol.FrameSpec) {
	frame, err := protocol.BuildFrame(spec)
	if err != nil {
		log.Fatalf("Failed to build frame: %v", err)
	}
	g.emit(frame)
}

func (g *generator) writeLLDP(src net.HardwareAddr) {
	dst := net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e}
	frame, err := protocol.BuildLinkFrame(src, dst, model.EtherTypeLLDP, make([]byte, 46))
	if err != nil {
		log.Fatalf("Failed to build LLDP frame: %v", err)
	}
	g.emit(frame)
}

func (g *generator) emit(frame []byte) {
	g.ts = g.ts.Add(time.Duration(g.rng.Intn(5000)+1) * time.Microsecond)
	ci := gopacket.CaptureInfo{Timestamp: g.ts, CaptureLength: len(frame), Length: len(frame)}
	if err := g.w.WritePacket(ci, frame); err != nil {
		log.Fatalf("Failed to write packet: %v", err)
	}
	g.count++
}
