package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Go2NetSentry/internal/alert"
	"Go2NetSentry/internal/audit"
	"Go2NetSentry/internal/config"
	_ "Go2NetSentry/internal/controlplane"
	"Go2NetSentry/internal/engine/manager"
	"Go2NetSentry/internal/events"
	"Go2NetSentry/internal/factory"
	"Go2NetSentry/internal/geoip"
	"Go2NetSentry/internal/metrics"
	"Go2NetSentry/internal/model"
	"Go2NetSentry/internal/notification"
	"Go2NetSentry/internal/query"
	_ "Go2NetSentry/internal/sink"
)

// engine holds every long-lived component built from the configuration.
type engine struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	cp      model.ControlPlane
	sinks   []model.EventSink
	manager *manager.Manager
	closers []func() error
}

// newEngine builds the control plane, writers, event sinks and manager. On error
// everything already opened is closed.
func newEngine(cfg *config.Config) (_ *engine, err error) {
	e := &engine{cfg: cfg, metrics: metrics.New()}
	defer func() {
		if err != nil {
			e.close()
		}
	}()

	e.cp, err = factory.CreateControlPlane(cfg)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, e.cp.Close)

	writers, err := factory.CreateWriters(cfg)
	if err != nil {
		return nil, err
	}
	if len(writers) == 0 {
		slog.Warn("no feature writers enabled, flow features will be discarded")
	}

	if cfg.Alerts.AuditLog != "" {
		l, err := audit.Open(cfg.Alerts.AuditLog)
		if err != nil {
			return nil, err
		}
		e.addSink(l)
	}
	if cfg.Events.Enabled {
		p, err := events.Dial(cfg.Events.NATS)
		if err != nil {
			return nil, err
		}
		e.addSink(p)
	}

	e.manager, err = manager.NewManager(cfg, manager.Deps{
		ControlPlane: e.cp,
		Writers:      writers,
		Sinks:        e.sinks,
		Metrics:      e.metrics,
	})
	if err != nil {
		for _, w := range writers {
			w.Close()
		}
		return nil, err
	}
	return e, nil
}

func (e *engine) addSink(s model.EventSink) {
	e.sinks = append(e.sinks, s)
	e.closers = append(e.closers, s.Close)
}

// correlator builds the alert handler with the optional GeoIP and email enrichments.
func (e *engine) correlator() *alert.Correlator {
	var opts []alert.CorrelatorOption
	if e.cfg.Alerts.GeoIPDB != "" {
		geo, err := geoip.Open(e.cfg.Alerts.GeoIPDB, 0)
		if err != nil {
			slog.Warn("GeoIP disabled", "path", e.cfg.Alerts.GeoIPDB, "err", err)
		} else {
			e.closers = append(e.closers, geo.Close)
			opts = append(opts, alert.WithGeoIP(geo))
		}
	}
	if e.cfg.SMTP.Host != "" {
		opts = append(opts, alert.WithNotifier(notification.NewEmailNotifier(e.cfg.SMTP), e.cfg.Alerts.NotifyMaxPriority))
	}
	return alert.NewCorrelator(e.manager.Detector(), e.sinks, e.metrics, opts...)
}

// querier opens the feature history store of the first enabled ClickHouse writer.
func (e *engine) querier(ctx context.Context) query.Querier {
	for _, def := range e.cfg.Emitter.Writers {
		if !def.Enabled || def.Type != "clickhouse" {
			continue
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		q, err := query.NewClickHouseQuerier(ctx, def.ClickHouse)
		if err != nil {
			slog.Warn("feature history disabled", "err", err)
			return nil
		}
		e.closers = append(e.closers, q.Close)
		return q
	}
	return nil
}

// close releases everything in reverse order of creation.
func (e *engine) close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close engine: %w", err)
	}
	return nil
}
