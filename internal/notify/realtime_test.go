package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receive(t *testing.T, ch <-chan Envelope) Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Envelope{}
	}
}

func TestHub_DeliversToRoomSubscribers(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	admin, err := hub.Subscribe(ctx, "admin")
	require.NoError(t, err)
	user, err := hub.Subscribe(ctx, "user:42")
	require.NoError(t, err)

	require.NoError(t, hub.Broadcast(ctx, "admin", "order.created", map[string]string{"orderNumber": "HKM-ORD-1"}))

	env := receive(t, admin)
	assert.Equal(t, "admin", env.Room)
	assert.Equal(t, "order.created", env.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "HKM-ORD-1", payload["orderNumber"])

	select {
	case <-user:
		t.Fatal("user room must not receive admin events")
	default:
	}
}

func TestHub_UnsubscribesOnCancel(t *testing.T) {
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := hub.Subscribe(ctx, "admin", "user:1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Empty(t, hub.subs)
}

func TestHub_BroadcastWithoutSubscribers(t *testing.T) {
	hub := NewHub(discardLogger())
	assert.NoError(t, hub.Broadcast(context.Background(), "nobody", "order.created", struct{}{}))
}

func TestHub_RejectsUnmarshalablePayload(t *testing.T) {
	hub := NewHub(discardLogger())
	assert.Error(t, hub.Broadcast(context.Background(), "admin", "order.created", make(chan int)))
}
