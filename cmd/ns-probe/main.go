package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/engine/protocol"
	sentrylog "Go2NetSentry/internal/log"
	"Go2NetSentry/internal/model"
	"Go2NetSentry/internal/probe"
	"Go2NetSentry/internal/probe/persistent"

	"github.com/nats-io/nats.go"
)

func main() {
	// --- Command-Line Flag Parsing ---
	mode := flag.String("mode", "sub", "Operating mode: 'pub' to capture and publish, 'sub' to subscribe and print.")
	iface := flag.String("iface", "", "Interface to capture packets from (required for pub mode).")
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL.")
	subject := flag.String("subject", "sentry.packetin", "NATS subject for packet-ins.")
	dpid := flag.Uint64("dpid", 1, "Datapath id attached to captured frames.")
	inPort := flag.Uint("in-port", 1, "Ingress port attached to captured frames.")
	record := flag.String("record", "", "Directory to record captured frames as pcap (pub mode).")
	level := flag.String("log-level", "info", "Log level: "+sentrylog.SupportedLevels)
	flag.Parse()

	if err := sentrylog.Configure(*level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	natsCfg := config.NATSConfig{URL: *natsURL, Subject: *subject}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Mode Dispatch ---
	var err error
	switch *mode {
	case "pub":
		err = runProbe(ctx, natsCfg, config.PcapSourceConfig{
			Interface:   *iface,
			SnapshotLen: 1600,
			Promiscuous: true,
			DatapathID:  *dpid,
			InPort:      uint32(*inPort),
		}, *record)
	case "sub":
		err = runSubscriber(ctx, natsCfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("ns-probe failed", "mode", *mode, "err", err)
		os.Exit(1)
	}
}

// runProbe captures frames and publishes them to NATS as packet-ins.
func runProbe(ctx context.Context, natsCfg config.NATSConfig, pcapCfg config.PcapSourceConfig, recordDir string) error {
	if pcapCfg.Interface == "" {
		flag.Usage()
		return fmt.Errorf("-iface flag is required for probe mode")
	}
	slog.Info("starting ns-probe in PROBE mode", "interface", pcapCfg.Interface)

	pub, err := probe.NewPublisher(natsCfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	capture, err := probe.OpenLive(pcapCfg)
	if err != nil {
		return err
	}
	if recordDir != "" {
		rec, err := persistent.NewRecorder(recordDir, uint32(pcapCfg.SnapshotLen), 0)
		if err != nil {
			return err
		}
		defer rec.Stop()
		capture.SetRecorder(rec)
	}

	published := 0
	capture.Run(ctx, func(pin *model.PacketIn) {
		if err := pub.Publish(pin); err != nil {
			slog.Warn("failed to publish packet-in", "err", err)
			return
		}
		published++
		if published%1000 == 0 {
			slog.Info("packets published", "count", published)
		}
	})
	slog.Info("shutdown signal received, cleaning up", "published", published)
	return nil
}

// runSubscriber prints every packet-in received from NATS.
func runSubscriber(ctx context.Context, natsCfg config.NATSConfig) error {
	slog.Info("starting ns-probe in SUBSCRIBER mode", "subject", natsCfg.Subject)

	sub, err := probe.NewSubscriber(natsCfg)
	if err != nil {
		return err
	}
	defer sub.Close()

	return sub.Run(ctx, func(pin *model.PacketIn) {
		attrs := []any{"dpid", pin.DatapathID, "in_port", pin.InPort, "len", len(pin.Data)}
		if facts, err := protocol.ParsePacket(pin.Data); err == nil {
			attrs = append(attrs, "src", facts.SrcMAC.String(), "dst", facts.DstMAC.String())
			if facts.HasNetwork {
				attrs = append(attrs, "src_ip", facts.SrcIP.String(), "dst_ip", facts.DstIP.String(), "proto", facts.Protocol)
			}
		}
		slog.Info("received packet-in", attrs...)
	})
}
