// Package room implements a single playback-synchronized room: its
// membership, its authoritative playback state, its pending-song queue, and
// the broadcast fan-out to members. A Room is the unit of serialization for
// the hub: every operation that reads or mutates a room's state does so
// while holding that room's own mutex, and never while holding the
// registry's mutex (see hub.Registry).
package room

import (
	"sync"
	"sync/atomic"

	"github.com/quietloop/syncradio/internal/v1/clock"
	"github.com/quietloop/syncradio/internal/v1/metrics"
	"github.com/quietloop/syncradio/internal/v1/playback"
	"go.uber.org/zap"
)

// Sender is the minimal surface a transport session must provide for a
// room to deliver frames to it. It decouples room from the transport
// package, which in turn depends on room's exported types but never the
// reverse.
type Sender interface {
	ID() string
	Send(frame []byte)
}

// Publisher relays a frame broadcast in this room to every other hub
// instance, for the optional cross-instance bus. A Room with no Publisher
// set behaves exactly as a single-instance hub.
type Publisher interface {
	Publish(roomID string, frame []byte)
}

// Room holds one room's membership and authoritative playback state. All
// access to its fields goes through its exported methods, which take mu.
type Room struct {
	ID string

	mu          sync.Mutex
	members     map[string]Sender
	memberCount atomic.Int32 // lock-free mirror of len(members), read by the registry without taking mu
	state       playback.State
	queue       playback.Queue
	publisher   Publisher

	clock clock.Clock
}

// New constructs an empty, idle room.
func New(id string, c clock.Clock) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]Sender),
		state:   playback.New(c.NowMs()),
		clock:   c,
	}
}

// AddMember registers s as a member of the room and returns the resulting
// member count.
func (r *Room) AddMember(s Sender) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[s.ID()] = s
	count := len(r.members)
	r.memberCount.Store(int32(count))
	metrics.SetRoomMembers(r.ID, count)
	return count
}

// RemoveMember removes s from the room and reports the resulting member
// count and whether s had in fact been a member.
func (r *Room) RemoveMember(id string) (remaining int, existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return len(r.members), false
	}
	delete(r.members, id)
	count := len(r.members)
	r.memberCount.Store(int32(count))
	metrics.SetRoomMembers(r.ID, count)
	return count, true
}

// MemberCount returns the current number of members. It reads an atomic
// mirror of the membership map rather than taking the room's mutex, so the
// registry can call it while holding its own lock without ever holding both
// locks at once.
func (r *Room) MemberCount() int {
	return int(r.memberCount.Load())
}

// Broadcast delivers frame to every member except excludeID (pass "" to
// exclude no one). Each member is sent to at most once; Send on the
// member's Sender is expected to be non-blocking. If a Publisher is
// configured, frame is also relayed to every other hub instance, so remote
// members stay in sync the same way local ones do.
func (r *Room) Broadcast(frame []byte, excludeID string) {
	r.mu.Lock()
	targets := make([]Sender, 0, len(r.members))
	for id, m := range r.members {
		if id == excludeID {
			continue
		}
		targets = append(targets, m)
	}
	publisher := r.publisher
	r.mu.Unlock()

	for _, m := range targets {
		m.Send(frame)
	}

	if publisher != nil {
		publisher.Publish(r.ID, frame)
	}
}

// DeliverRemote fans frame out to every local member, with no exclusion and
// no further relay. It is the counterpart to Broadcast used when frame
// originated on another hub instance and arrived over the bus.
func (r *Room) DeliverRemote(frame []byte) {
	r.mu.Lock()
	targets := make([]Sender, 0, len(r.members))
	for _, m := range r.members {
		targets = append(targets, m)
	}
	r.mu.Unlock()

	for _, m := range targets {
		m.Send(frame)
	}
}

// SetPublisher wires the room to the cross-instance bus. Passing nil
// reverts the room to single-instance behavior.
func (r *Room) SetPublisher(p Publisher) {
	r.mu.Lock()
	r.publisher = p
	r.mu.Unlock()
}

// SendTo delivers frame to exactly one member, if still present.
func (r *Room) SendTo(id string, frame []byte) {
	r.mu.Lock()
	m, ok := r.members[id]
	r.mu.Unlock()
	if ok {
		m.Send(frame)
	}
}

// WithState runs fn with exclusive access to the room's playback state and
// queue. Every state mutation in the dispatcher goes through this so that
// read-modify-write is atomic with respect to other members of the same
// room; the broadcast that follows a mutation is sent after the lock is
// released.
func (r *Room) WithState(fn func(s *playback.State, q *playback.Queue)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state, &r.queue)
}

// State returns a copy of the current playback state.
func (r *Room) State() playback.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// QueueSnapshot returns a copy of the pending-song queue in FIFO order.
func (r *Room) QueueSnapshot() []playback.Song {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Snapshot()
}

// Clock returns the room's clock, used by the dispatcher to timestamp
// transitions consistently with the state it mutates.
func (r *Room) Clock() clock.Clock {
	return r.clock
}

// LogFields returns zap fields identifying this room for structured
// logging call sites.
func (r *Room) LogFields() []zap.Field {
	return []zap.Field{zap.String("room_id", r.ID)}
}
