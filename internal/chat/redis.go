package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultEventChannel = "chat:events"

	defaultRetryBackoff = time.Second
	maxRetryBackoff     = 30 * time.Second
)

// RedisBroadcaster fans events out through Redis pub/sub so every server
// instance can deliver to its own connections.
type RedisBroadcaster struct {
	Redis   *redis.Client
	Channel string

	// RetryBackoff is the first wait after a failed subscription; it
	// doubles up to 30s.
	RetryBackoff time.Duration
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{Redis: client, Channel: DefaultEventChannel, RetryBackoff: defaultRetryBackoff}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.Redis.Publish(ctx, b.Channel, raw).Err()
}

// Run delivers published events to hub until ctx is cancelled. ready, when
// non-nil, is closed once the subscription is active.
func (b *RedisBroadcaster) Run(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	sub := b.Redis.Subscribe(ctx, b.Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.Channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("chat: drop malformed event: %v", err)
				continue
			}
			hub.Deliver(ev)
		}
	}
}

// Serve keeps Run alive until ctx is cancelled, resubscribing with backoff
// whenever the subscription fails or drops. ready is closed after the first
// successful subscription.
func (b *RedisBroadcaster) Serve(ctx context.Context, hub *Hub, ready chan struct{}) {
	backoff := b.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	wait := backoff
	for {
		err := b.Run(ctx, hub, ready)
		if ctx.Err() != nil {
			return
		}
		if ready != nil {
			select {
			case <-ready:
				ready = nil
			default:
			}
		}
		if err != nil {
			log.Printf("chat: event subscriber failed, retrying in %s: %v", wait, err)
		} else {
			// Run only returns nil after it had subscribed.
			wait = backoff
			log.Printf("chat: event subscription closed, resubscribing in %s", wait)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRetryBackoff)
	}
}
