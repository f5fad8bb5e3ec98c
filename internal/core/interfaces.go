package core

import (
	"time"

	"github.com/aweso807-blip/syncb/internal/domain"
)

// Frame is a marshaled outbound message payload.
type Frame []byte

type SessionID string

// NoSender marks a broadcast that excludes nobody.
const NoSender SessionID = ""

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SentTo  int
	Dropped int
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.ClientID `json:"id"`
	Username string          `json:"username"`
}

// Snapshot is a read of a room taken after any in-flight mutation, with the
// position projected to the read time.
type Snapshot struct {
	HostID      domain.ClientID
	MemberCount int
	State       domain.PlaybackState
}

// RemoveResult describes the membership and host fallout of a departure.
type RemoveResult struct {
	Removed     bool
	HostChanged bool
	NewHostID   domain.ClientID
	Empty       bool
}

// RoomService is the core-facing API of a room. It owns the playback state
// and the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	HostID() domain.ClientID

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID) RemoveResult
	ClaimHost(id domain.ClientID)

	ApplyPatch(requester domain.ClientID, p domain.Patch) (domain.PlaybackState, bool)
	Snapshot(latency time.Duration) Snapshot

	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
	MediaRef    string        `json:"media_ref"`
	Playing     bool          `json:"playing"`
}

type RoomFactory interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	Remove(id domain.RoomID)
}
