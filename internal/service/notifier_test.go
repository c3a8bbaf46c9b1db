package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
)

type fakeMailer struct {
	mu    sync.Mutex
	sent  []string
	err   error
	panic bool
	block chan struct{}
}

func (m *fakeMailer) record(kind string) error {
	if m.block != nil {
		<-m.block
	}
	if m.panic {
		panic("mailer exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, kind)
	return m.err
}

func (m *fakeMailer) SendOrderConfirmation(_ context.Context, _ *model.Order, _ *model.Invoice) error {
	return m.record("confirmation")
}

func (m *fakeMailer) SendOrderStatusUpdate(_ context.Context, _ *model.Order, _ string) error {
	return m.record("status")
}

func (m *fakeMailer) SendOrderCancellation(_ context.Context, _ *model.Order) error {
	return m.record("cancellation")
}

func (m *fakeMailer) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	rooms []string
	err   error
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, room, event string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = append(b.rooms, room+"|"+event)
	return b.err
}

func (b *fakeBroadcaster) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.rooms...)
}

func userOrder() (model.Order, uuid.UUID) {
	userID := uuid.New()
	return model.Order{
		ID: uuid.New(), OrderNumber: "HKM-ORD-1", UserID: &userID,
		Customer: model.Contact{Name: "Radha", Email: "radha@example.com"},
		Status:   model.OrderStatusPending,
	}, userID
}

func TestNotifier_FansOutToEmailAndRooms(t *testing.T) {
	mailer := &fakeMailer{}
	bc := &fakeBroadcaster{}
	n := NewNotifier(mailer, bc, discardLogger())
	order, userID := userOrder()

	n.Notify(context.Background(), Event{Type: EventOrderCreated, Order: order})
	require.NoError(t, n.Close(context.Background()))

	assert.Equal(t, []string{"confirmation"}, mailer.kinds())
	assert.ElementsMatch(t, []string{
		"admin|order.created",
		"user:" + userID.String() + "|order.created",
	}, bc.sent())
}

func TestNotifier_GuestOrderSkipsUserRoom(t *testing.T) {
	mailer := &fakeMailer{}
	bc := &fakeBroadcaster{}
	n := NewNotifier(mailer, bc, discardLogger())
	order, _ := userOrder()
	order.UserID = nil

	n.Notify(context.Background(), Event{Type: EventOrderCancelled, Order: order})
	require.NoError(t, n.Close(context.Background()))

	assert.Equal(t, []string{"cancellation"}, mailer.kinds())
	assert.Equal(t, []string{"admin|order.cancelled"}, bc.sent())
}

func TestNotifier_SwallowsCollaboratorFailures(t *testing.T) {
	mailer := &fakeMailer{err: errBoom}
	bc := &fakeBroadcaster{err: errBoom}
	n := NewNotifier(mailer, bc, discardLogger())
	order, _ := userOrder()

	n.Notify(context.Background(), Event{Type: EventOrderStatusChanged, Order: order})
	require.NoError(t, n.Close(context.Background()))

	assert.Equal(t, []string{"status"}, mailer.kinds())
	assert.Len(t, bc.sent(), 2)
}

func TestNotifier_RecoversFromPanic(t *testing.T) {
	bc := &fakeBroadcaster{}
	n := NewNotifier(&fakeMailer{panic: true}, bc, discardLogger())
	order, _ := userOrder()

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Event{Type: EventOrderCreated, Order: order})
		require.NoError(t, n.Close(context.Background()))
	})
}

func TestNotifier_DoesNotBlockCaller(t *testing.T) {
	mailer := &fakeMailer{block: make(chan struct{})}
	n := NewNotifier(mailer, &fakeBroadcaster{}, discardLogger())
	order, _ := userOrder()

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	n.Notify(ctx, Event{Type: EventOrderCreated, Order: order})
	cancel()
	assert.Less(t, time.Since(start), time.Second)

	short, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, n.Close(short), context.DeadlineExceeded)

	close(mailer.block)
	require.NoError(t, n.Close(context.Background()))
	assert.Equal(t, []string{"confirmation"}, mailer.kinds())
}

func TestNotifier_DropsEventsAfterClose(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifier(mailer, &fakeBroadcaster{}, discardLogger())
	require.NoError(t, n.Close(context.Background()))

	order, _ := userOrder()
	n.Notify(context.Background(), Event{Type: EventOrderCreated, Order: order})
	require.NoError(t, n.Close(context.Background()))
	assert.Empty(t, mailer.kinds())
}
