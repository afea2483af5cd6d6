package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisChannel is the pub/sub channel used to share changes between server instances.
const RedisChannel = "notepad:changes"

type rds struct {
	client  *redis.Client
	channel string
}

// NewRedisBroker returns a Broker sharing changes through the redis server at the given URL.
func NewRedisBroker(url string) (Broker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse redis url")
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "could not connect to redis")
	}

	return NewRedisBrokerWithClient(client), nil
}

// NewRedisBrokerWithClient returns a Broker from an existing redis client.
func NewRedisBrokerWithClient(client *redis.Client) Broker {
	return &rds{
		client:  client,
		channel: RedisChannel,
	}
}

func (b *rds) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "could not serialize change")
	}

	err = b.client.Publish(ctx, b.channel, payload).Err()
	return errors.Wrap(err, "could not publish change")
}

func (b *rds) Subscribe(ctx context.Context) (<-chan Change, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so no change published afterward is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.Wrap(err, "could not subscribe to changes")
	}

	changes := make(chan Change, 64)
	go func() {
		defer close(changes)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}

				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return changes, nil
}

func (b *rds) Close() error {
	return errors.Wrap(b.client.Close(), "could not close redis client")
}
