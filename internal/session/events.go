package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	EventSignedIn         EventType = "signed_in"
	EventSignedOut        EventType = "signed_out"
	EventTokenRefreshed   EventType = "token_refreshed"
	EventUserUpdated      EventType = "user_updated"
	EventPasswordRecovery EventType = "password_recovery"
)

// Event is a session change for one identity.
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

// Bus fans session events out to subscribers of the same identity. The returned cancel
// func releases the subscription and closes the channel; it is safe to call twice.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error)
}

const subscriberBuffer = 16

// LocalBus delivers events within the process. Slow subscribers drop events.
type LocalBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[int]chan Event)}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]chan Event)
	}
	b.subs[userID][id] = ch
	b.mu.Unlock()

	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], id)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
			close(done)
		})
	}

	// exits on whichever comes first: the caller's ctx or an explicit cancel
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}

func channelFor(userID string) string {
	return "session_events:" + userID
}

// RedisBus publishes on a per-identity redis channel so every API replica sees the event.
type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisBus(rdb *redis.Client, log *slog.Logger) *RedisBus {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{rdb: rdb, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return b.rdb.Publish(ctx, channelFor(ev.UserID), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	sub := b.rdb.Subscribe(ctx, channelFor(userID))

	// wait for the subscription to be confirmed so errors surface here
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan Event, subscriberBuffer)

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = sub.Close() })
	}

	go func() {
		defer cancel()
		b.relay(ctx, sub.Channel(), out)
	}()

	return out, cancel, nil
}

// relay decodes pub/sub messages into out until ctx ends or in closes, then closes out.
// Malformed payloads are logged and skipped; a full out drops the event.
func (b *RedisBus) relay(ctx context.Context, in <-chan *redis.Message, out chan<- Event) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}

			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("bad session event", "channel", msg.Channel, "err", err)
				continue
			}

			select {
			case out <- ev:
			default:
			}
		}
	}
}
