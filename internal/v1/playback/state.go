// Package playback implements the per-room playback state machine: the
// authoritative (is_playing, current_song, position, start_time) tuple and
// the transition functions that mutate it. This package is intentionally
// free of networking and locking concerns so it can be tested in isolation;
// the room package owns the mutex that serializes calls into it.
package playback

// TriggeredByServer is the reserved sentinel used for server-originated
// transitions (auto-advance on playback_ended, and idling out an empty
// queue). Session identifiers are minted as UUIDv4 strings elsewhere in the
// hub, so this literal can never collide with a real session id.
const TriggeredByServer = "server"

// State is the authoritative playback state of a single room.
type State struct {
	IsPlaying       bool
	CurrentSong     Song
	PositionSeconds float64
	StartTimeMs     *int64
	LastUpdatedMs   int64
	SongID          string
	TriggeredBy     string
}

// New returns the Idle state a freshly created room starts in.
func New(now int64) State {
	return State{LastUpdatedMs: now}
}

// IsIdle reports whether the room has no loaded song and is not playing.
func (s State) IsIdle() bool {
	return !s.IsPlaying && s.CurrentSong == nil
}

// ClampPosition enforces the "position >= 0" invariant on any value read
// from an inbound message or stored field.
func ClampPosition(p float64) float64 {
	if p < 0 {
		return 0
	}
	return p
}

// DerivedPosition computes the current logical playhead at wall time nowMs:
// when playing it is derived from start_time, otherwise it is the stored
// position.
func (s State) DerivedPosition(nowMs int64) float64 {
	if s.IsPlaying {
		if s.StartTimeMs == nil {
			return 0
		}
		delta := float64(nowMs-*s.StartTimeMs) / 1000.0
		if delta < 0 {
			return 0
		}
		return delta
	}
	return ClampPosition(s.PositionSeconds)
}

// ServerPlay implements the server_play transition: the room is (re)started
// at an untrusted, client-reported position. The policy of trusting the
// caller's position outright is isolated in this single function so a
// future authorization check can gate it without touching call sites.
func (s *State) ServerPlay(now int64, position float64, songID, triggeredBy string) {
	position = ClampPosition(position)
	start := now - int64(position*1000)
	s.IsPlaying = true
	s.PositionSeconds = position
	s.StartTimeMs = &start
	s.SongID = songID
	s.TriggeredBy = triggeredBy
	s.LastUpdatedMs = now
}

// Seek implements the seek transition. While playing, start_time is
// recomputed so the derived position matches p; while paused, only the
// stored position changes and start_time stays unset.
func (s *State) Seek(now int64, position float64, triggeredBy string) {
	position = ClampPosition(position)
	s.PositionSeconds = position
	if s.IsPlaying {
		start := now - int64(position*1000)
		s.StartTimeMs = &start
	} else {
		s.StartTimeMs = nil
	}
	s.TriggeredBy = triggeredBy
	s.LastUpdatedMs = now
}

// SongChange implements the song_change transition: load a new song and
// start it immediately from position 0.
func (s *State) SongChange(now int64, song Song, triggeredBy string) {
	s.load(now, song, triggeredBy)
}

// PromoteSong implements the add_song promotion transitions (Idle->Playing,
// and the setAsCurrent=true overwrite-while-playing case): the given song
// becomes current and starts immediately.
func (s *State) PromoteSong(now int64, song Song, triggeredBy string) {
	s.load(now, song, triggeredBy)
}

// AdvanceTo implements the playback_ended auto-advance transition: the next
// queued song becomes current, triggered by the server sentinel.
func (s *State) AdvanceTo(now int64, song Song) {
	s.load(now, song, TriggeredByServer)
}

func (s *State) load(now int64, song Song, triggeredBy string) {
	s.CurrentSong = song
	s.PositionSeconds = 0
	start := now
	s.StartTimeMs = &start
	s.IsPlaying = true
	s.SongID = song.ID()
	s.TriggeredBy = triggeredBy
	s.LastUpdatedMs = now
}

// GoIdle implements the playback_ended transition taken when the queue is
// empty: the room quietly returns to Idle with no broadcast.
func (s *State) GoIdle(now int64) {
	s.IsPlaying = false
	s.CurrentSong = nil
	s.PositionSeconds = 0
	s.StartTimeMs = nil
	s.TriggeredBy = TriggeredByServer
	s.LastUpdatedMs = now
}
