package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sagalens/pkg/adapters/redis"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_NoSubscriber(t *testing.T) {
	_, client := newClient(t)
	pub := redis.NewPublisher(client)

	err := pub.Send(context.Background(), domain.Message{Type: domain.MessageTaskList, Payload: []domain.Snapshot{}})
	assert.ErrorIs(t, err, domain.ErrClientNotReady)
}

func TestPublisher_DeliversToSubscriber(t *testing.T) {
	for _, codec := range []redis.Codec{redis.JSON, redis.Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			_, client := newClient(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pub := redis.NewPublisher(client, redis.WithChannel("test"), redis.WithPubSubCodec(codec), redis.WithSource("monitor-1"))
			sub := redis.NewSubscriber(client, redis.WithChannel("test"), redis.WithPubSubCodec(codec))

			ready := make(chan struct{}, 1)
			require.NoError(t, pub.WatchReady(ctx, func(context.Context) {
				select {
				case ready <- struct{}{}:
				default:
				}
			}))

			got := make(chan redis.Envelope, 2)
			go func() {
				_ = sub.Listen(ctx, func(env redis.Envelope) error {
					got <- env
					return nil
				})
			}()

			select {
			case <-ready:
			case <-time.After(2 * time.Second):
				t.Fatal("subscriber never announced readiness")
			}

			desc := "watchFetch"
			snap := domain.Snapshot{TriggerType: "FETCH", Description: &desc, Duration: 12}
			require.NoError(t, pub.Send(ctx, domain.Message{Type: domain.MessageTaskComplete, Payload: snap}))

			select {
			case env := <-got:
				assert.Equal(t, "monitor-1", env.Source)
				assert.NotEmpty(t, env.ID)
				msg := env.Message()
				assert.Equal(t, domain.MessageTaskComplete, msg.Type)
				snaps := msg.Snapshots()
				require.Len(t, snaps, 1)
				assert.Equal(t, "FETCH", snaps[0].TriggerType)
				require.NotNil(t, snaps[0].Description)
				assert.Equal(t, desc, *snaps[0].Description)
				assert.Equal(t, int64(12), snaps[0].Duration)
			case <-time.After(2 * time.Second):
				t.Fatal("envelope not received")
			}
		})
	}
}

func TestEnvelope_Message(t *testing.T) {
	list := redis.Envelope{Type: domain.MessageTaskList}.Message()
	assert.Equal(t, []domain.Snapshot{}, list.Payload)

	one := redis.Envelope{Type: domain.MessageTaskComplete, Snapshots: []domain.Snapshot{{TriggerType: "X"}}}.Message()
	assert.Equal(t, domain.Snapshot{TriggerType: "X"}, one.Payload)
}

func TestPublisher_Contract(t *testing.T) {
	_, client := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := redis.NewPublisher(client, redis.WithPubSubCodec(redis.Msgpack))
	sub := redis.NewSubscriber(client, redis.WithPubSubCodec(redis.Msgpack))

	ready := make(chan struct{}, 1)
	require.NoError(t, pub.WatchReady(ctx, func(context.Context) {
		select {
		case ready <- struct{}{}:
		default:
		}
	}))

	got := make(chan domain.Message, 8)
	go func() {
		_ = sub.Listen(ctx, func(env redis.Envelope) error {
			got <- env.Message()
			return nil
		})
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never announced readiness")
	}

	ports.RunTransportContract(t, pub, func(t *testing.T, n int) []domain.Message {
		var out []domain.Message
		for len(out) < n {
			select {
			case msg := <-got:
				out = append(out, msg)
			case <-time.After(2 * time.Second):
				t.Fatalf("received %d of %d messages", len(out), n)
			}
		}
		return out
	})
}
