package main

import (
	"flag"
	"log"
	"net"
	"time"

	"Go2NetSentry/internal/alert"
	"Go2NetSentry/internal/engine/protocol"
	"Go2NetSentry/internal/model"

	"github.com/google/gopacket/layers"
)

func main() {
	socketPath := flag.String("socket", "/tmp/snort_alert", "Path of the engine's alert socket")
	count := flag.Int("c", 1, "Number of alerts to send")
	message := flag.String("msg", "ET SCAN Possible Nmap SYN scan", "Alert message")
	eventID := flag.Uint("event", 1000001, "First event id; incremented per alert")
	priority := flag.Uint("priority", 1, "Snort priority (1 is the most urgent)")
	srcMAC := flag.String("src-mac", "00:00:00:00:00:0a", "Source MAC of the embedded frame")
	srcIP := flag.String("src-ip", "10.0.0.10", "Source IP of the embedded frame")
	dstIP := flag.String("dst-ip", "10.0.0.20", "Destination IP of the embedded frame")
	short := flag.Bool("short", false, "Send truncated datagrams to exercise the parse error path")
	interval := flag.Duration("interval", 100*time.Millisecond, "Delay between alerts")
	flag.Parse()

	mac, err := net.ParseMAC(*srcMAC)
	if err != nil {
		log.Fatalf("Invalid -src-mac: %v", err)
	}
	frame, err := protocol.BuildFrame(protocol.FrameSpec{
		SrcMAC: mac, DstMAC: net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x0b},
		SrcIP: net.ParseIP(*srcIP), DstIP: net.ParseIP(*dstIP),
		Protocol: layers.IPProtocolTCP, SrcPort: 40000, DstPort: 80,
		Flags: model.TCPFlags{SYN: true},
	})
	if err != nil {
		log.Fatalf("Failed to build frame: %v", err)
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: *socketPath, Net: "unixgram"})
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *socketPath, err)
	}
	defer conn.Close()

	for i := 0; i < *count; i++ {
		datagram := alert.MarshalAlert(*message, uint32(*eventID)+uint32(i), uint32(*priority), frame)
		if *short {
			datagram = datagram[:alert.HeaderSize/2]
		}
		if _, err := conn.Write(datagram); err != nil {
			log.Fatalf("Failed to send alert %d: %v", i, err)
		}
		if i+1 < *count {
			time.Sleep(*interval)
		}
	}
	log.Printf("Sent %d alerts to %s", *count, *socketPath)
}
