// Package dispatch implements the message dispatcher: it decodes nothing
// itself (that's protocol's job) but routes already-decoded frames to the
// room operation their kind names, and owns the one piece of state no
// other package needs to see — which room, if any, each session currently
// belongs to.
package dispatch

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietloop/syncradio/internal/v1/clock"
	"github.com/quietloop/syncradio/internal/v1/hub"
	"github.com/quietloop/syncradio/internal/v1/logging"
	"github.com/quietloop/syncradio/internal/v1/metrics"
	"github.com/quietloop/syncradio/internal/v1/playback"
	"github.com/quietloop/syncradio/internal/v1/protocol"
	"github.com/quietloop/syncradio/internal/v1/room"
)

// Dispatcher routes frames from any number of concurrent sessions to the
// room registry. It holds no playback state of its own; membership lookups
// are the only state it owns.
type Dispatcher struct {
	registry *hub.Registry
	clock    clock.Clock

	mu         sync.Mutex
	membership map[string]string // session id -> room id
}

// New constructs a Dispatcher backed by registry, using c to timestamp
// error replies sent before any room is involved.
func New(registry *hub.Registry, c clock.Clock) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		clock:      c,
		membership: make(map[string]string),
	}
}

func (d *Dispatcher) roomIDFor(sessionID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.membership[sessionID]
	return id, ok
}

func (d *Dispatcher) setRoomFor(sessionID, roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.membership[sessionID] = roomID
}

func (d *Dispatcher) clearRoomFor(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.membership, sessionID)
}

// Route decodes nothing; it is handed an already-decoded Inbound and
// dispatches it: join_room is handled specially, every other recognized
// room-scoped kind requires the sender to currently be a member of some
// room (silently ignored otherwise), and any unrecognized kind is reported
// back to the sender as an error.
func (d *Dispatcher) Route(s room.Sender, msg protocol.Inbound) {
	if msg.Type == protocol.KindJoinRoom {
		d.handleJoinRoom(s, msg)
		return
	}

	if !protocol.IsKnownKind(msg.Type) {
		metrics.WebsocketEvents.WithLabelValues("unknown", "rejected").Inc()
		s.Send(protocol.Error("Unknown message type: "+string(msg.Type), d.clock.NowMs()))
		return
	}

	roomID, ok := d.roomIDFor(s.ID())
	if !ok {
		// Room-scoped message with no current room: silently ignored by
		// design, since a client may race a leave_room against it.
		return
	}

	r, ok := d.registry.Get(roomID)
	if !ok {
		// The room vanished (emptied out) between join and this message.
		d.clearRoomFor(s.ID())
		return
	}

	metrics.WebsocketEvents.WithLabelValues(string(msg.Type), "ok").Inc()
	start := time.Now()
	defer func() {
		metrics.MessageProcessingDuration.WithLabelValues(string(msg.Type)).Observe(time.Since(start).Seconds())
	}()

	switch msg.Type {
	case protocol.KindLeaveRoom:
		d.leaveRoom(s, r)
	case protocol.KindPlay, protocol.KindPause, protocol.KindClientResume:
		d.replyStateSync(s, r)
	case protocol.KindClientPause:
		d.ackClientPause(s, r)
	case protocol.KindServerPlay:
		d.handleServerPlay(s, r, msg)
	case protocol.KindSeek:
		d.handleSeek(s, r, msg)
	case protocol.KindSongChange:
		d.handleSongChange(s, r, msg)
	case protocol.KindAddSong:
		d.handleAddSong(s, r, msg)
	case protocol.KindPlaybackEnded:
		d.handlePlaybackEnded(r)
	case protocol.KindGetRoomState:
		d.handleGetRoomState(s, r, msg)
	case protocol.KindSyncRequest:
		d.handleSyncRequest(s, r)
	}
}

// Disconnect removes the session from its room (if any), notifies the
// remaining members, and destroys the room if it is now empty. It never
// mutates playback state.
func (d *Dispatcher) Disconnect(s room.Sender) {
	roomID, ok := d.roomIDFor(s.ID())
	if !ok {
		return
	}
	d.clearRoomFor(s.ID())

	r, ok := d.registry.Get(roomID)
	if !ok {
		return
	}

	remaining, existed := r.RemoveMember(s.ID())
	if existed {
		r.Broadcast(protocol.ClientLeft(s.ID(), remaining), "")
	}
	d.registry.DropIfEmpty(roomID)
}

func (d *Dispatcher) handleJoinRoom(s room.Sender, msg protocol.Inbound) {
	if msg.RoomID == "" {
		s.Send(protocol.Error("missing required field: roomId", d.clock.NowMs()))
		return
	}

	if prevID, ok := d.roomIDFor(s.ID()); ok && prevID != msg.RoomID {
		if prev, ok := d.registry.Get(prevID); ok {
			remaining, existed := prev.RemoveMember(s.ID())
			if existed {
				prev.Broadcast(protocol.ClientLeft(s.ID(), remaining), "")
			}
			d.registry.DropIfEmpty(prevID)
		}
	}

	r := d.registry.GetOrCreate(msg.RoomID)
	count := r.AddMember(s)
	d.setRoomFor(s.ID(), msg.RoomID)

	now := r.Clock().NowMs()
	view := protocol.BuildStateView(r.State(), now)

	s.Send(protocol.RoomJoined(msg.RoomID, view, count))
	s.Send(protocol.ServerStateSync(view, now))
	r.Broadcast(protocol.ClientJoined(s.ID(), count), s.ID())

	logging.Info(nil, "session joined room", zap.String("session_id", s.ID()), zap.String("room_id", msg.RoomID))
}

func (d *Dispatcher) leaveRoom(s room.Sender, r *room.Room) {
	remaining, existed := r.RemoveMember(s.ID())
	d.clearRoomFor(s.ID())
	if existed {
		r.Broadcast(protocol.ClientLeft(s.ID(), remaining), "")
	}
	d.registry.DropIfEmpty(r.ID)
}

func (d *Dispatcher) replyStateSync(s room.Sender, r *room.Room) {
	now := r.Clock().NowMs()
	view := protocol.BuildStateView(r.State(), now)
	s.Send(protocol.ServerStateSync(view, now))
}

func (d *Dispatcher) ackClientPause(s room.Sender, r *room.Room) {
	now := r.Clock().NowMs()
	s.Send(protocol.ClientPauseAck(s.ID(), now))
}

func (d *Dispatcher) handleServerPlay(s room.Sender, r *room.Room, msg protocol.Inbound) {
	now := r.Clock().NowMs()
	position := msg.Position.Float64()

	var songID, triggeredBy string
	var startTime int64
	r.WithState(func(st *playback.State, _ *playback.Queue) {
		st.ServerPlay(now, position, msg.SongID, s.ID())
		songID = st.SongID
		triggeredBy = st.TriggeredBy
		if st.StartTimeMs != nil {
			startTime = *st.StartTimeMs
		}
	})
	metrics.PlaybackTransitions.WithLabelValues("server_play").Inc()

	r.Broadcast(protocol.ServerPlaySync(position, now, startTime, songID, triggeredBy), "")
}

func (d *Dispatcher) handleSeek(s room.Sender, r *room.Room, msg protocol.Inbound) {
	now := r.Clock().NowMs()
	position := msg.Position.Float64()

	var isPlaying bool
	var startTime *int64
	r.WithState(func(st *playback.State, _ *playback.Queue) {
		st.Seek(now, position, s.ID())
		isPlaying = st.IsPlaying
		startTime = st.StartTimeMs
	})
	metrics.PlaybackTransitions.WithLabelValues("seek").Inc()

	r.Broadcast(protocol.SeekSync(position, isPlaying, now, startTime, s.ID()), "")
}

func (d *Dispatcher) handleSongChange(s room.Sender, r *room.Room, msg protocol.Inbound) {
	now := r.Clock().NowMs()

	r.WithState(func(st *playback.State, _ *playback.Queue) {
		st.SongChange(now, msg.Song, s.ID())
	})
	metrics.PlaybackTransitions.WithLabelValues("song_change").Inc()

	r.Broadcast(protocol.SongChangeSync(msg.Song, now, now, s.ID()), "")
}

func (d *Dispatcher) handleAddSong(s room.Sender, r *room.Room, msg protocol.Inbound) {
	now := r.Clock().NowMs()

	var (
		promoted    bool
		wasIdle     bool
		queueLength int
	)
	r.WithState(func(st *playback.State, q *playback.Queue) {
		switch {
		case st.IsIdle():
			wasIdle = true
			promoted = true
			st.PromoteSong(now, msg.Song, s.ID())
		case msg.SetAsCurrent && st.IsPlaying:
			wasIdle = false
			promoted = true
			st.PromoteSong(now, msg.Song, s.ID())
		default:
			q.Enqueue(msg.Song)
		}
		queueLength = q.Len()
	})

	setAsCurrent := promoted
	s.Send(protocol.SongAddedResponse(true, msg.Song, setAsCurrent, queueLength))

	if promoted {
		metrics.PlaybackTransitions.WithLabelValues("add_song_promote").Inc()
		wasIdleCopy := wasIdle
		r.Broadcast(protocol.NewSongNotification(msg.Song, now, now, &wasIdleCopy), "")
	}
}

func (d *Dispatcher) handlePlaybackEnded(r *room.Room) {
	now := r.Clock().NowMs()

	var (
		advanced bool
		next     playback.Song
	)
	r.WithState(func(st *playback.State, q *playback.Queue) {
		song, ok := q.Dequeue()
		if ok {
			advanced = true
			next = song
			st.AdvanceTo(now, song)
		} else {
			st.GoIdle(now)
		}
	})

	if advanced {
		metrics.PlaybackTransitions.WithLabelValues("playback_ended_advance").Inc()
		r.Broadcast(protocol.NewSongNotification(next, now, now, nil), "")
	} else {
		metrics.PlaybackTransitions.WithLabelValues("playback_ended_idle").Inc()
	}
}

func (d *Dispatcher) handleGetRoomState(s room.Sender, r *room.Room, msg protocol.Inbound) {
	now := r.Clock().NowMs()
	view := protocol.BuildStateView(r.State(), now)
	s.Send(protocol.RoomStateResponse(view, now, msg.RequestID, r.QueueSnapshot()))
}

func (d *Dispatcher) handleSyncRequest(s room.Sender, r *room.Room) {
	now := r.Clock().NowMs()
	view := protocol.BuildStateView(r.State(), now)
	s.Send(protocol.SyncResponse(view, now))
}
