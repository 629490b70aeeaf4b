// Package protocol implements the JSON wire format exchanged over the
// WebSocket connection: message kind tags, the inbound envelope, and
// builders for every outbound frame the hub emits.
package protocol

// Kind is the required "type" tag carried by every frame in both
// directions.
type Kind string

// Inbound kinds, routed by the dispatcher.
const (
	KindJoinRoom      Kind = "join_room"
	KindLeaveRoom     Kind = "leave_room"
	KindPlay          Kind = "play"
	KindPause         Kind = "pause"
	KindClientPause   Kind = "client_pause"
	KindClientResume  Kind = "client_resume"
	KindServerPlay    Kind = "server_play"
	KindSeek          Kind = "seek"
	KindSongChange    Kind = "song_change"
	KindAddSong       Kind = "add_song"
	KindPlaybackEnded Kind = "playback_ended"
	KindGetRoomState  Kind = "get_room_state"
	KindSyncRequest   Kind = "sync_request"
)

// Outbound kinds.
const (
	KindConnected           Kind = "connected"
	KindError               Kind = "error"
	KindRoomJoined          Kind = "room_joined"
	KindServerStateSync     Kind = "server_state_sync"
	KindClientJoined        Kind = "client_joined"
	KindClientLeft          Kind = "client_left"
	KindServerPlaySync      Kind = "server_play_sync"
	KindSeekSync            Kind = "seek_sync"
	KindSongChangeSync      Kind = "song_change_sync"
	KindNewSongNotification Kind = "new_song_notification"
	KindClientPauseAck      Kind = "client_pause_ack"
	KindSyncResponse        Kind = "sync_response"
	KindRoomStateResponse   Kind = "room_state_response"
	KindSongAddedResponse   Kind = "song_added_response"
)

// roomScopedKinds are the inbound kinds recognized by the dispatcher that
// require the sender to already be a member of a room. join_room is
// deliberately excluded: it is the one kind that is valid with no current
// room.
var roomScopedKinds = map[Kind]bool{
	KindLeaveRoom:     true,
	KindPlay:          true,
	KindPause:         true,
	KindClientPause:   true,
	KindClientResume:  true,
	KindServerPlay:    true,
	KindSeek:          true,
	KindSongChange:    true,
	KindAddSong:       true,
	KindPlaybackEnded: true,
	KindGetRoomState:  true,
	KindSyncRequest:   true,
}

// IsKnownKind reports whether k is any recognized inbound kind (including
// join_room). Used by the dispatcher to distinguish "unknown type" errors
// from the silent ignore applied to room-scoped kinds sent with no room.
func IsKnownKind(k Kind) bool {
	if k == KindJoinRoom {
		return true
	}
	return roomScopedKinds[k]
}

// IsRoomScoped reports whether k requires the sender to be in a room.
func IsRoomScoped(k Kind) bool {
	return roomScopedKinds[k]
}
