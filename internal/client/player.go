// Package client keeps a local player consistent with the relayed room
// state and reports host-side edits back to the relay.
package client

// EventKind classifies a player state transition.
type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	EventRate
	EventSeek
)

// PlayerEvent is emitted by a Player on every state transition, whether the
// transition was user-driven or programmatic. Position and Rate are the
// player's values at the moment of the event.
type PlayerEvent struct {
	Kind     EventKind
	Position float64
	Rate     float64
}

// Player is the playable-media surface the reconciler drives. The package
// depends only on this capability set, not on any concrete player.
//
// Implementations must deliver events synchronously from within the call
// that caused the transition, so a correction made by the reconciler reaches
// the handler while the correction is still marked in flight.
type Player interface {
	Load(ref string, startPos float64)
	Play()
	Pause()
	Seek(pos float64)
	SetRate(r float64)

	MediaRef() string
	Position() float64
	Rate() float64
	Playing() bool

	OnEvent(func(PlayerEvent))
}
