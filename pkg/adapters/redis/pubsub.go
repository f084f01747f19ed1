package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/sagalens/internal/logging"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// Envelope is the published form of a telemetry message.
type Envelope struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	Type      domain.MessageType `json:"type"`
	Snapshots []domain.Snapshot  `json:"snapshots"`
	SentAt    time.Time          `json:"sentAt"`
}

// Message rebuilds the telemetry message carried by the envelope.
func (e Envelope) Message() domain.Message {
	if e.Type == domain.MessageTaskComplete && len(e.Snapshots) == 1 {
		return domain.Message{Type: e.Type, Payload: e.Snapshots[0]}
	}
	snaps := e.Snapshots
	if snaps == nil {
		snaps = []domain.Snapshot{}
	}
	return domain.Message{Type: e.Type, Payload: snaps}
}

// PubSubOption configures a Publisher or Subscriber.
type PubSubOption func(*pubsub)

type pubsub struct {
	client  *backend.Client
	channel string
	codec   Codec
	source  string
	logger  *slog.Logger
}

func newPubSub(client *backend.Client, opts []PubSubOption) pubsub {
	ps := pubsub{
		client:  client,
		channel: "sagalens:messages",
		codec:   JSON,
		source:  uuid.NewString(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&ps)
	}
	return ps
}

// WithChannel sets the message channel. Ready signals use channel + ":ready".
func WithChannel(channel string) PubSubOption {
	return func(ps *pubsub) {
		ps.channel = channel
	}
}

// WithPubSubCodec sets the envelope codec.
func WithPubSubCodec(c Codec) PubSubOption {
	return func(ps *pubsub) {
		if c != nil {
			ps.codec = c
		}
	}
}

// WithSource tags published envelopes with the sending monitor id.
func WithSource(source string) PubSubOption {
	return func(ps *pubsub) {
		ps.source = source
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) PubSubOption {
	return func(ps *pubsub) {
		if logger != nil {
			ps.logger = logger
		}
	}
}

func (ps *pubsub) readyChannel() string {
	return ps.channel + ":ready"
}

// Publisher is a ports.Transport publishing messages on a redis channel.
type Publisher struct {
	pubsub
}

var _ ports.Transport = (*Publisher)(nil)

// NewPublisher creates a publisher on an existing client.
func NewPublisher(client *backend.Client, opts ...PubSubOption) *Publisher {
	return &Publisher{pubsub: newPubSub(client, opts)}
}

// Send publishes msg. A message nobody received is reported as
// domain.ErrClientNotReady so that the monitor buffers it again.
func (p *Publisher) Send(ctx context.Context, msg domain.Message) error {
	env := Envelope{
		ID:        uuid.NewString(),
		Source:    p.source,
		Type:      msg.Type,
		Snapshots: msg.Snapshots(),
		SentAt:    time.Now().UTC(),
	}
	data, err := p.codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	if receivers == 0 {
		return domain.ErrClientNotReady
	}
	return nil
}

// WatchReady calls onReady each time a subscriber announces itself, until
// ctx is done. It returns once the watch subscription is active.
func (p *Publisher) WatchReady(ctx context.Context, onReady func(context.Context)) error {
	sub := p.client.Subscribe(ctx, p.readyChannel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to watch ready channel: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				p.logger.DebugContext(ctx, "inspection client ready", "client", m.Payload)
				onReady(ctx)
			}
		}
	}()
	return nil
}

// Subscriber consumes the messages published by monitors.
type Subscriber struct {
	pubsub
}

// NewSubscriber creates a subscriber on an existing client.
func NewSubscriber(client *backend.Client, opts ...PubSubOption) *Subscriber {
	return &Subscriber{pubsub: newPubSub(client, opts)}
}

// Listen subscribes to the message channel, announces readiness, and calls
// handle for each envelope until ctx is done or handle fails.
func (s *Subscriber) Listen(ctx context.Context, handle func(Envelope) error) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := s.client.Publish(ctx, s.readyChannel(), s.source).Err(); err != nil {
		return fmt.Errorf("failed to announce readiness: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := s.codec.Unmarshal([]byte(m.Payload), &env); err != nil {
				s.logger.WarnContext(ctx, "dropping undecodable envelope", "error", err)
				continue
			}
			if err := handle(env); err != nil {
				return err
			}
		}
	}
}
