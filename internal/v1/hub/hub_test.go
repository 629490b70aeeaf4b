package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietloop/syncradio/internal/v1/clock"
)

const (
	assertEventuallyTimeout = time.Second
	assertEventuallyTick    = 10 * time.Millisecond
)

type fakeBus struct {
	mu          sync.Mutex
	published   []string
	subscribed  []string
	cancelled   []string
	handlers    map[string]func(frame []byte)
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]func(frame []byte))}
}

func (b *fakeBus) Publish(ctx context.Context, roomID string, frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, roomID)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, roomID string, wg *sync.WaitGroup, handler func(frame []byte)) {
	b.mu.Lock()
	b.subscribed = append(b.subscribed, roomID)
	b.handlers[roomID] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.cancelled = append(b.cancelled, roomID)
		b.mu.Unlock()
	}()
}

func (b *fakeBus) subscribedRooms() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.subscribed))
	copy(out, b.subscribed)
	return out
}

func (b *fakeBus) wasCancelled(roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.cancelled {
		if id == roomID {
			return true
		}
	}
	return false
}

type fakeSender struct {
	id string
}

func (f *fakeSender) ID() string      { return f.id }
func (f *fakeSender) Send(_ []byte)   {}

func TestGetOrCreateCreatesAndReusesRoom(t *testing.T) {
	reg := New(clock.NewFixed(0))

	r1 := reg.GetOrCreate("room-1")
	r2 := reg.GetOrCreate("room-1")

	assert.Same(t, r1, r2)
	assert.Equal(t, 1, reg.RoomCount())
}

func TestGetReportsExistence(t *testing.T) {
	reg := New(clock.NewFixed(0))

	_, ok := reg.Get("missing")
	assert.False(t, ok)

	reg.GetOrCreate("room-1")
	r, ok := reg.Get("room-1")
	require.True(t, ok)
	assert.Equal(t, "room-1", r.ID)
}

func TestDropIfEmptyRemovesEmptyRoomOnly(t *testing.T) {
	reg := New(clock.NewFixed(0))
	r := reg.GetOrCreate("room-1")

	r.AddMember(&fakeSender{id: "a"})
	reg.DropIfEmpty("room-1")
	_, ok := reg.Get("room-1")
	assert.True(t, ok, "room with members must not be dropped")

	r.RemoveMember("a")
	reg.DropIfEmpty("room-1")
	_, ok = reg.Get("room-1")
	assert.False(t, ok, "empty room must be dropped")
}

func TestDropIfEmptyOnUnknownRoomIsANoop(t *testing.T) {
	reg := New(clock.NewFixed(0))
	reg.DropIfEmpty("never-existed")
	assert.Equal(t, 0, reg.RoomCount())
}

func TestRecreatingRoomAfterDropStartsFresh(t *testing.T) {
	reg := New(clock.NewFixed(0))
	r1 := reg.GetOrCreate("room-1")
	r1.AddMember(&fakeSender{id: "a"})
	r1.RemoveMember("a")
	reg.DropIfEmpty("room-1")

	r2 := reg.GetOrCreate("room-1")
	assert.NotSame(t, r1, r2)
	assert.Equal(t, 0, r2.MemberCount())
}

func TestGetOrCreateWiresBusPublisherAndSubscription(t *testing.T) {
	b := newFakeBus()
	reg := NewWithBus(clock.NewFixed(0), b)

	r := reg.GetOrCreate("room-1")
	assert.Equal(t, []string{"room-1"}, b.subscribedRooms())

	r.Broadcast([]byte("frame"), "")
	assert.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.published) == 1 && b.published[0] == "room-1"
	}, assertEventuallyTimeout, assertEventuallyTick)

	// The room has no members, so dropping it here tears down the
	// subscription goroutine the fake bus spawned above instead of
	// leaking it past the end of the test.
	reg.DropIfEmpty("room-1")
	assert.Eventually(t, func() bool {
		return b.wasCancelled("room-1")
	}, assertEventuallyTimeout, assertEventuallyTick)
}

func TestDropIfEmptyCancelsBusSubscription(t *testing.T) {
	b := newFakeBus()
	reg := NewWithBus(clock.NewFixed(0), b)

	r := reg.GetOrCreate("room-1")
	r.AddMember(&fakeSender{id: "a"})
	r.RemoveMember("a")
	reg.DropIfEmpty("room-1")

	assert.Eventually(t, func() bool {
		return b.wasCancelled("room-1")
	}, assertEventuallyTimeout, assertEventuallyTick)
}

func TestRegistryWithoutBusLeavesRoomUnwired(t *testing.T) {
	reg := New(clock.NewFixed(0))
	r := reg.GetOrCreate("room-1")
	r.Broadcast([]byte("frame"), "")
}
