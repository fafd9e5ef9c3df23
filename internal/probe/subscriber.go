package probe

import (
	"context"
	"fmt"
	"log/slog"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"

	"github.com/nats-io/nats.go"
)

const subscriberBuffer = 4096

// PacketHandler processes a received packet-in.
type PacketHandler func(pin *model.PacketIn)

// Subscriber is responsible for subscribing to a NATS subject and decoding packet-ins.
type Subscriber struct {
	nc      *nats.Conn
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("ns-sentry"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	slog.Info("connected to NATS server", "url", cfg.URL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Run subscribes to the configured subject and passes every decodable packet-in to
// handler until ctx is done. The handler runs on the calling goroutine only.
func (s *Subscriber) Run(ctx context.Context, handler PacketHandler) error {
	msgs := make(chan *nats.Msg, subscriberBuffer)
	sub, err := s.nc.ChanSubscribe(s.subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("failed to unsubscribe", "subject", s.subject, "err", err)
		}
	}()
	slog.Info("subscribed to packet-ins", "subject", s.subject)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			pin, err := DecodePacketIn(msg)
			if err != nil {
				slog.Warn("dropping malformed packet-in", "subject", msg.Subject, "err", err)
				continue
			}
			handler(pin)
		}
	}
}

// Close closes the NATS connection.
func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
		slog.Info("NATS connection closed")
	}
}
