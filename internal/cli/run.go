package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Go2NetSentry/internal/alert"
	"Go2NetSentry/internal/api"
	"Go2NetSentry/internal/model"
	"Go2NetSentry/internal/probe"
	"Go2NetSentry/internal/probe/persistent"

	"github.com/spf13/cobra"
)

var (
	runInterface string
	runSource    string
	runNoAlerts  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live engine",
	Long: `Run the engine against a live packet-in source until interrupted.

The source is either a local capture interface ("pcap") or a NATS subject fed by
ns-probe or a switch agent ("nats"). The alert listener, HTTP API and gRPC
health service run alongside.

Examples:
  ns-sentry run --source pcap --iface eth0
  ns-sentry run --source nats --no-alerts
`,
	Args: cobra.NoArgs,
	RunE: runEngine,
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "Packet-in source: pcap or nats (overrides config)")
	runCmd.Flags().StringVarP(&runInterface, "iface", "i", "", "Capture interface for the pcap source (overrides config)")
	runCmd.Flags().BoolVar(&runNoAlerts, "no-alerts", false, "Disable the Snort alert listener")
}

func runEngine(cmd *cobra.Command, args []string) error {
	if runSource != "" {
		cfg.Source.Type = runSource
	}
	if runInterface != "" {
		cfg.Source.Pcap.Interface = runInterface
	}
	if runNoAlerts {
		cfg.Alerts.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.close(); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	health := api.NewHealthServer()
	if cfg.API.GRPCAddr != "" {
		go func() {
			if err := health.ListenAndServe(cfg.API.GRPCAddr); err != nil {
				slog.Error("gRPC health server stopped", "err", err)
			}
		}()
		defer health.Stop()
	}

	m := eng.manager
	m.Start()
	health.SetServing(api.EngineService, true)

	srv := api.NewServer(cfg.API.ListenAddr, m, eng.metrics,
		api.WithHealth(health), api.WithQuerier(eng.querier(ctx)))
	srv.Start()

	alertsDone := make(chan struct{})
	if cfg.Alerts.Enabled {
		go func() {
			defer close(alertsDone)
			runAlertListener(ctx, eng, health)
		}()
	} else {
		close(alertsDone)
	}

	sourceDone, err := startSource(ctx, m.InputChannel(), m.SwitchConnected)
	if err != nil {
		// The source is the only input; without it the engine has nothing to do.
		stop()
		<-alertsDone
		shutdown(srv, health)
		m.Stop()
		return err
	}

	<-ctx.Done()
	slog.Info("shutdown signal received, cleaning up")
	<-sourceDone
	<-alertsDone
	shutdown(srv, health)
	m.Stop()
	return nil
}

func shutdown(srv *api.Server, health *api.HealthServer) {
	health.SetServing(api.EngineService, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("API server forced to shutdown", "err", err)
	}
}

// runAlertListener binds the Snort socket and serves until ctx is done. A bind
// failure only disables alert ingestion.
func runAlertListener(ctx context.Context, eng *engine, health *api.HealthServer) {
	l := alert.NewListener(cfg.Alerts.SocketPath, cfg.Alerts.MaxDatagram, eng.correlator(), eng.metrics)
	if err := l.Listen(); err != nil {
		slog.Error("alert listener disabled", "err", err)
		health.SetServing(api.AlertsService, false)
		return
	}
	defer l.Close()
	health.SetServing(api.AlertsService, true)
	if err := l.Serve(ctx); err != nil {
		slog.Error("alert listener stopped", "err", err)
	}
	health.SetServing(api.AlertsService, false)
}

// startSource starts the configured packet-in source feeding in. The returned
// channel is closed once the source has stopped delivering packets.
func startSource(ctx context.Context, in chan<- *model.PacketIn, connected func(dpid uint64)) (<-chan struct{}, error) {
	done := make(chan struct{})
	deliver := func(pin *model.PacketIn) {
		select {
		case in <- pin:
		case <-ctx.Done():
		}
	}

	switch cfg.Source.Type {
	case "pcap":
		var recorder *persistent.Recorder
		if cfg.Source.RecordPath != "" {
			var err error
			recorder, err = persistent.NewRecorder(cfg.Source.RecordPath, uint32(cfg.Source.Pcap.SnapshotLen), 0)
			if err != nil {
				return nil, err
			}
		}
		capture, err := probe.OpenLive(cfg.Source.Pcap)
		if err != nil {
			if recorder != nil {
				recorder.Stop()
			}
			return nil, err
		}
		if recorder != nil {
			capture.SetRecorder(recorder)
		}
		connected(cfg.Source.Pcap.DatapathID)
		go func() {
			defer close(done)
			capture.Run(ctx, deliver)
			if recorder != nil {
				if err := recorder.Stop(); err != nil {
					slog.Error("failed to close recording", "err", err)
				}
			}
		}()
	case "nats":
		sub, err := probe.NewSubscriber(cfg.Source.NATS)
		if err != nil {
			return nil, err
		}
		seen := newDatapathSet(connected)
		go func() {
			defer close(done)
			defer sub.Close()
			err := sub.Run(ctx, func(pin *model.PacketIn) {
				seen.observe(pin.DatapathID)
				deliver(pin)
			})
			if err != nil {
				slog.Error("packet-in subscription failed", "err", err)
			}
		}()
	default:
		return nil, fmt.Errorf("unknown source type '%s'", cfg.Source.Type)
	}
	return done, nil
}
