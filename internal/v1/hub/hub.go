// Package hub implements the room registry: the central coordinator that
// creates rooms on demand and destroys them the instant they empty out.
//
// Concurrency: the registry's mutex and any individual room's mutex are
// never held at the same time. Callers acquire the registry lock only long
// enough to look up or insert a *room.Room, release it, and then operate on
// the room through its own methods. DropIfEmpty follows the same rule: under
// the registry lock it reads the room's member count through a lock-free
// atomic mirror, never taking the room's own lock.
package hub

import (
	"context"
	"sync"

	"github.com/quietloop/syncradio/internal/v1/clock"
	"github.com/quietloop/syncradio/internal/v1/logging"
	"github.com/quietloop/syncradio/internal/v1/metrics"
	"github.com/quietloop/syncradio/internal/v1/room"
	"go.uber.org/zap"
)

// Bus is the narrow surface the registry needs from the cross-instance
// broadcast transport, satisfied by *bus.Service. A nil Bus keeps the
// registry in single-instance mode.
type Bus interface {
	Publish(ctx context.Context, roomID string, frame []byte) error
	Subscribe(ctx context.Context, roomID string, wg *sync.WaitGroup, handler func(frame []byte))
}

// Registry is the central coordinator for all active rooms.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*room.Room
	cancels map[string]context.CancelFunc
	clock   clock.Clock
	bus     Bus
	wg      sync.WaitGroup
}

// New constructs an empty registry backed by c for timestamping new rooms,
// with no cross-instance bus.
func New(c clock.Clock) *Registry {
	return &Registry{
		rooms:   make(map[string]*room.Room),
		cancels: make(map[string]context.CancelFunc),
		clock:   c,
	}
}

// NewWithBus constructs an empty registry whose rooms relay and receive
// broadcasts over b, keeping multiple hub instances in sync.
func NewWithBus(c clock.Clock, b Bus) *Registry {
	reg := New(c)
	reg.bus = b
	return reg
}

// busPublisher adapts Registry.bus to room.Publisher.
type busPublisher struct{ bus Bus }

func (p busPublisher) Publish(roomID string, frame []byte) {
	if err := p.bus.Publish(context.Background(), roomID, frame); err != nil {
		logging.Warn(nil, "bus publish failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

// GetOrCreate returns the existing room for id, or creates and registers a
// new idle one if none exists yet. Safe for concurrent use. When the
// registry has a bus configured, the new room is wired to publish its
// broadcasts and to relay frames received from other instances.
func (reg *Registry) GetOrCreate(id string) *room.Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[id]; ok {
		return r
	}

	r := room.New(id, reg.clock)
	reg.rooms[id] = r
	metrics.IncRooms()

	if reg.bus != nil {
		r.SetPublisher(busPublisher{reg.bus})
		ctx, cancel := context.WithCancel(context.Background())
		reg.cancels[id] = cancel
		reg.bus.Subscribe(ctx, id, &reg.wg, r.DeliverRemote)
	}

	logging.Info(nil, "room created", zap.String("room_id", id))
	return r
}

// Get returns the room for id, if it currently exists.
func (reg *Registry) Get(id string) (*room.Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// DropIfEmpty destroys the registry's record of room id if it currently has
// no members. Per the destroyed-immediately invariant, there is no grace
// period: a room that empties out is gone before the next lookup can
// observe it, and a subsequent join recreates it from scratch with no
// memory of prior state.
func (reg *Registry) DropIfEmpty(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return
	}
	// MemberCount is a lock-free atomic read, so this never holds the
	// room's own mutex and the registry mutex at the same time.
	if r.MemberCount() > 0 {
		return
	}

	delete(reg.rooms, id)
	if cancel, ok := reg.cancels[id]; ok {
		cancel()
		delete(reg.cancels, id)
	}
	metrics.DecRooms()
	metrics.DeleteRoomMembers(id)
	logging.Info(nil, "room destroyed", zap.String("room_id", id))
}

// RoomCount reports the number of currently registered rooms. Used by the
// health handler and tests.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}
