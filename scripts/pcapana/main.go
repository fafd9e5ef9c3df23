package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"Go2NetSentry/internal/engine/detector"
	"Go2NetSentry/internal/engine/flowtable"
	"Go2NetSentry/internal/engine/protocol"
	"Go2NetSentry/internal/model"
	"Go2NetSentry/pkg/pcap"
)

func main() {
	show := flag.Int("n", 5, "Number of frames to print in detail")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go [-n 5] <path_to_pcap_file>")
		os.Exit(1)
	}

	reader, err := pcap.NewReader(flag.Arg(0), 1, 1)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	frames := make(chan *model.PacketIn, 1024)
	go reader.ReadPackets(frames)

	// Dry-run the threshold policy to show which hosts a replay would block.
	det := detector.New(detector.NewHostCounters(), detector.NewBlockRegistry(), detector.DefaultThresholds)
	flows := make(map[flowtable.FlowKey]int)
	i, unparsed, lldp := 0, 0, 0
	for pin := range frames {
		i++
		facts, err := protocol.ParsePacket(pin.Data)
		if err != nil {
			unparsed++
			continue
		}
		if facts.EtherType == model.EtherTypeLLDP {
			lldp++
			continue
		}
		mac := facts.SrcMAC.String()
		if det.Registry().IsBlocked(mac) {
			continue
		}
		if !facts.HasNetwork {
			continue
		}
		key, fromLow := flowtable.NewFlowKey(facts.SrcIP, facts.DstIP, facts.Protocol, facts.SrcPort, facts.DstPort)
		flows[key]++
		dec := det.Inspect(pin.DatapathID, mac, facts.IsTCP, facts.TCPFlags.SynOnly())

		if i <= *show {
			fmt.Printf("[%s] %s -> %s %s:%d -> %s:%d proto=%d len=%d flow=%s forward=%t\n",
				pin.Timestamp.Format("15:04:05.000"),
				facts.SrcMAC, facts.DstMAC,
				facts.SrcIP, facts.SrcPort, facts.DstIP, facts.DstPort,
				facts.Protocol, facts.Length, key, fromLow,
			)
		}
		if dec.Install {
			fmt.Printf("frame %d: %s would be blocked (%s after %d packets, %d bare SYNs)\n",
				i, mac, dec.Reason, dec.State.Packets, dec.State.SynOnly)
		}
	}

	fmt.Printf("\n%d frames, %d flows, %d LLDP, %d undecodable, %d hosts, %d blocked\n",
		i, len(flows), lldp, unparsed, len(det.Counters().Snapshot()), det.Registry().Len())
}
