package events

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultSubject = "sentry.events"

// Event kinds, appended to the subject prefix.
const (
	KindBlock = "block"
	KindAlert = "alert"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher sends block and alert events to NATS as protobuf Struct messages on
// "<subject>.block" and "<subject>.alert".
type Publisher struct {
	nc      *nats.Conn
	pub     publisher
	subject string
}

// Dial connects to the NATS server in cfg.
func Dial(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("ns-sentry-events"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect event publisher to NATS at %s: %w", cfg.URL, err)
	}
	slog.Info("event publisher connected to NATS", "url", cfg.URL)
	p := newPublisher(nc, cfg.Subject)
	p.nc = nc
	return p, nil
}

func newPublisher(pub publisher, subject string) *Publisher {
	if subject == "" {
		subject = defaultSubject
	}
	return &Publisher{pub: pub, subject: subject}
}

func (p *Publisher) PublishBlock(ev model.BlockEvent) error {
	return p.publish(KindBlock, ev)
}

func (p *Publisher) PublishAlert(ev model.AlertEvent) error {
	return p.publish(KindAlert, ev)
}

func (p *Publisher) publish(kind string, ev any) error {
	data, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", kind, err)
	}
	if err := p.pub.Publish(p.subject+"."+kind, data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// Encode converts an event into a protobuf Struct using its JSON field names.
func Encode(ev any) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Decode parses a message produced by Encode into a generic map.
func Decode(data []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return s.AsMap(), nil
}

var _ model.EventSink = (*Publisher)(nil)
