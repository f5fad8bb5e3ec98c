// Package protocol is the wire catalogue of the sync relay. One JSON record
// per message, discriminated by "type". Shared by the server adapter and the
// client so the two ends cannot drift apart.
package protocol

import (
	"time"

	"github.com/aweso807-blip/syncb/internal/domain"
)

// Client → server message types.
const (
	TypeJoin        = "join"
	TypeSetHost     = "set_host"
	TypeSync        = "sync"
	TypeSyncRequest = "sync_request"
	TypeChat        = "chat"
	TypePing        = "ping"
)

// Server → client message types.
const (
	TypeRoomState   = "room_state"
	TypeHostChanged = "host_changed"
	TypeUserCount   = "user_count"
	TypePong        = "pong"
)

const MaxChatLen = 400

// Envelope is the minimal probe used to route an inbound record.
type Envelope struct {
	Type string `json:"type"`
}

type Join struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	ClientID string `json:"clientId"`
	Username string `json:"username,omitempty"`
}

type Chat struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Ping struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// State is the playback state as it travels the wire. UpdatedAt is Unix
// milliseconds; position is seconds.
type State struct {
	MediaRef  string  `json:"mediaRef"`
	Playing   bool    `json:"playing"`
	Position  float64 `json:"position"`
	Rate      float64 `json:"rate"`
	UpdatedAt int64   `json:"updatedAt"`
}

func StateFromDomain(s domain.PlaybackState) State {
	return State{
		MediaRef:  s.MediaRef,
		Playing:   s.Playing,
		Position:  s.Position,
		Rate:      s.Rate,
		UpdatedAt: s.UpdatedAt.UnixMilli(),
	}
}

func (s State) ToDomain() domain.PlaybackState {
	return domain.PlaybackState{
		MediaRef:  s.MediaRef,
		Playing:   s.Playing,
		Position:  s.Position,
		Rate:      s.Rate,
		UpdatedAt: time.UnixMilli(s.UpdatedAt),
	}
}

type RoomState struct {
	Type      string `json:"type"`
	HostID    string `json:"hostId"`
	UserCount int    `json:"userCount"`
	State     State  `json:"state"`
}

type SyncState struct {
	Type   string `json:"type"`
	HostID string `json:"hostId"`
	State  State  `json:"state"`
}

type HostChanged struct {
	Type   string `json:"type"`
	HostID string `json:"hostId"`
}

type UserCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type ChatEvent struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Username string `json:"username"`
	Text     string `json:"text"`
	TS       int64  `json:"ts"`
}

type Pong struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}
