package protocol

import "github.com/quietloop/syncradio/internal/v1/playback"

// StateView is the wire representation of a room's playback state, with
// position resolved to the derived value at the moment of serialization.
type StateView struct {
	IsPlaying   bool          `json:"isPlaying"`
	CurrentSong playback.Song `json:"currentSong"`
	Position    float64       `json:"position"`
	StartTime   *int64        `json:"startTime"`
	LastUpdated int64         `json:"lastUpdated"`
	SongID      string        `json:"songId,omitempty"`
	TriggeredBy string        `json:"triggeredBy,omitempty"`
}

// BuildStateView derives a StateView from the authoritative state at wall
// time nowMs, resolving position the same way every *_sync message does.
func BuildStateView(s playback.State, nowMs int64) StateView {
	return StateView{
		IsPlaying:   s.IsPlaying,
		CurrentSong: s.CurrentSong,
		Position:    s.DerivedPosition(nowMs),
		StartTime:   s.StartTimeMs,
		LastUpdated: s.LastUpdatedMs,
		SongID:      s.SongID,
		TriggeredBy: s.TriggeredBy,
	}
}
