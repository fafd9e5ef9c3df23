package probe

import (
	"fmt"
	"log/slog"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"

	"github.com/nats-io/nats.go"
)

type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher is responsible for publishing packet-ins to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	pub     msgPublisher
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("ns-probe"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	slog.Info("connected to NATS server", "url", cfg.URL)
	return &Publisher{nc: nc, pub: nc, subject: cfg.Subject}, nil
}

// Publish sends pin to the configured subject.
func (p *Publisher) Publish(pin *model.PacketIn) error {
	return p.pub.PublishMsg(EncodePacketIn(p.subject, pin))
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			slog.Warn("failed to drain NATS connection", "err", err)
		}
		slog.Info("NATS connection drained and closed")
	}
}
