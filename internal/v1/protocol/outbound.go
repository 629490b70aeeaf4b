package protocol

import (
	"encoding/json"

	"github.com/quietloop/syncradio/internal/v1/playback"
	"go.uber.org/zap"

	"github.com/quietloop/syncradio/internal/v1/logging"
)

// Frame marshals kind plus fields into a single flat JSON object, the shape
// every outbound message uses. A marshal failure (which should only happen
// for a caller bug, since every field type here is JSON-safe) is logged and
// yields a generic error frame rather than panicking the caller's send path.
func Frame(kind Kind, fields map[string]any) []byte {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["type"] = string(kind)

	data, err := json.Marshal(out)
	if err != nil {
		logging.Error(nil, "failed to marshal outbound frame", zap.String("kind", string(kind)), zap.Error(err))
		data, _ = json.Marshal(map[string]any{"type": string(KindError), "message": "internal encoding error"})
	}
	return data
}

// Connected builds the welcome frame sent once per accepted connection.
func Connected(clientID string, serverTime int64) []byte {
	return Frame(KindConnected, map[string]any{
		"clientId":   clientID,
		"serverTime": serverTime,
	})
}

// Error builds the unicast error frame sent for malformed input, missing
// fields, and unknown message kinds.
func Error(message string, timestamp int64) []byte {
	return Frame(KindError, map[string]any{
		"message":   message,
		"timestamp": timestamp,
	})
}

// RoomJoined builds the reply sent to a joiner once it has been attached to
// a room.
func RoomJoined(roomID string, state StateView, clientCount int) []byte {
	return Frame(KindRoomJoined, map[string]any{
		"roomId":        roomID,
		"playbackState": state,
		"clientCount":   clientCount,
	})
}

// ServerStateSync builds the derived-position resync sent in reply to
// play/pause/client_resume and on join.
func ServerStateSync(state StateView, serverTime int64) []byte {
	return Frame(KindServerStateSync, map[string]any{
		"playbackState":   state,
		"serverTime":      serverTime,
		"isServerPlaying": state.IsPlaying,
	})
}

// ClientJoined builds the broadcast sent to existing members when a new
// session joins.
func ClientJoined(clientID string, clientCount int) []byte {
	return Frame(KindClientJoined, map[string]any{
		"clientId":    clientID,
		"clientCount": clientCount,
	})
}

// ClientLeft builds the broadcast sent to remaining members when a session
// leaves or disconnects.
func ClientLeft(clientID string, clientCount int) []byte {
	return Frame(KindClientLeft, map[string]any{
		"clientId":    clientID,
		"clientCount": clientCount,
	})
}

// ServerPlaySync builds the room-wide broadcast for the server_play
// transition.
func ServerPlaySync(position float64, serverTime int64, startTime int64, songID, triggeredBy string) []byte {
	return Frame(KindServerPlaySync, map[string]any{
		"position":    position,
		"serverTime":  serverTime,
		"startTime":   startTime,
		"songId":      songID,
		"triggeredBy": triggeredBy,
	})
}

// SeekSync builds the room-wide broadcast for the seek transition.
func SeekSync(position float64, isPlaying bool, serverTime int64, startTime *int64, triggeredBy string) []byte {
	return Frame(KindSeekSync, map[string]any{
		"position":    position,
		"isPlaying":   isPlaying,
		"serverTime":  serverTime,
		"startTime":   startTime,
		"triggeredBy": triggeredBy,
	})
}

// SongChangeSync builds the room-wide broadcast for the song_change
// transition.
func SongChangeSync(song playback.Song, serverTime, startTime int64, triggeredBy string) []byte {
	return Frame(KindSongChangeSync, map[string]any{
		"song":        song,
		"serverTime":  serverTime,
		"startTime":   startTime,
		"triggeredBy": triggeredBy,
	})
}

// NewSongNotification builds the broadcast sent on every add_song promotion
// and playback_ended auto-advance. wasIdle is only meaningful (and only
// included) for the add_song case; pass nil to omit it.
func NewSongNotification(song playback.Song, startTime, serverTime int64, wasIdle *bool) []byte {
	fields := map[string]any{
		"song":       song,
		"startTime":  startTime,
		"serverTime": serverTime,
	}
	if wasIdle != nil {
		fields["wasIdle"] = *wasIdle
	}
	return Frame(KindNewSongNotification, fields)
}

// ClientPauseAck builds the unicast reply to client_pause.
func ClientPauseAck(clientID string, timestamp int64) []byte {
	return Frame(KindClientPauseAck, map[string]any{
		"clientId":  clientID,
		"timestamp": timestamp,
	})
}

// SyncResponse builds the unicast reply to sync_request.
func SyncResponse(state StateView, serverTime int64) []byte {
	return Frame(KindSyncResponse, map[string]any{
		"playbackState": state,
		"serverTime":    serverTime,
	})
}

// RoomStateResponse builds the unicast reply to get_room_state.
func RoomStateResponse(state StateView, serverTime int64, requestID string, queue []playback.Song) []byte {
	if queue == nil {
		queue = []playback.Song{}
	}
	return Frame(KindRoomStateResponse, map[string]any{
		"playbackState": state,
		"serverTime":    serverTime,
		"requestId":     requestID,
		"queue":         queue,
	})
}

// SongAddedResponse builds the unicast reply to add_song.
func SongAddedResponse(success bool, song playback.Song, setAsCurrent bool, queueLength int) []byte {
	return Frame(KindSongAddedResponse, map[string]any{
		"success":      success,
		"song":         song,
		"setAsCurrent": setAsCurrent,
		"queueLength":  queueLength,
	})
}
