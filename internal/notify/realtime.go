package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "realtime:"

// Envelope is one real-time event as delivered to subscribers.
type Envelope struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sentAt"`
}

func newEnvelope(room, event string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Room: room, Event: event, Payload: raw, SentAt: time.Now().UTC()}, nil
}

// RedisBroadcaster publishes events on the Redis channel realtime:{room} so
// every API instance can forward them to its subscribers.
type RedisBroadcaster struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisBroadcaster(client *redis.Client, log *slog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, log: log}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, room, event string, payload any) error {
	env, err := newEnvelope(room, event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+room, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", room, err)
	}
	return nil
}

// Subscribe streams the events of rooms until ctx is done. The returned
// channel is closed afterwards.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, rooms ...string) (<-chan Envelope, error) {
	channels := make([]string, 0, len(rooms))
	for _, room := range rooms {
		channels = append(channels, channelPrefix+room)
	}
	sub := b.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("dropping malformed realtime message", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Hub is an in-process broadcaster used when Redis is not configured. It
// only reaches subscribers of the same instance.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[chan Envelope]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, subs: make(map[string]map[chan Envelope]struct{})}
}

// Broadcast never blocks: subscribers that are not keeping up miss events.
func (h *Hub) Broadcast(_ context.Context, room, event string, payload any) error {
	env, err := newEnvelope(room, event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[room] {
		select {
		case ch <- env:
		default:
			h.log.Warn("realtime subscriber too slow, event dropped", "room", room, "event", event)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, rooms ...string) (<-chan Envelope, error) {
	ch := make(chan Envelope, 16)

	h.mu.Lock()
	for _, room := range rooms {
		if h.subs[room] == nil {
			h.subs[room] = make(map[chan Envelope]struct{})
		}
		h.subs[room][ch] = struct{}{}
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		for _, room := range rooms {
			delete(h.subs[room], ch)
			if len(h.subs[room]) == 0 {
				delete(h.subs, room)
			}
		}
		h.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
