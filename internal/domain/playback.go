// Package domain contains entities without transport or lifecycle logic.
package domain

import (
	"math"
	"strings"
	"time"
)

const DefaultRate = 1.0

// PlaybackState is the authoritative "what is playing, where, at what rate"
// record of a room. Position is the position at UpdatedAt, not at read time;
// use Project to extrapolate.
type PlaybackState struct {
	MediaRef  string
	Playing   bool
	Position  float64
	Rate      float64
	UpdatedAt time.Time
}

func NewPlaybackState(now time.Time) PlaybackState {
	return PlaybackState{Rate: DefaultRate, UpdatedAt: now}
}

// Patch is a partial playback update. Nil fields are untouched.
type Patch struct {
	MediaRef *string
	Playing  *bool
	Position *float64
	Rate     *float64
}

// Empty reports whether the patch carries no fields at all.
func (p Patch) Empty() bool {
	return p.MediaRef == nil && p.Playing == nil && p.Position == nil && p.Rate == nil
}

// Apply merges the patch into the state, validating field by field.
// Invalid fields are dropped individually; a patch with one bad field still
// applies its good fields. Reports whether any field was accepted.
// UpdatedAt is the caller's concern (the store owns the room clock).
func (s *PlaybackState) Apply(p Patch) bool {
	applied := false
	if p.MediaRef != nil {
		s.MediaRef = strings.TrimSpace(*p.MediaRef)
		applied = true
	}
	if p.Playing != nil {
		s.Playing = *p.Playing
		applied = true
	}
	if p.Position != nil && !math.IsNaN(*p.Position) && !math.IsInf(*p.Position, 0) {
		s.Position = math.Max(0, *p.Position)
		applied = true
	}
	if p.Rate != nil && !math.IsNaN(*p.Rate) && !math.IsInf(*p.Rate, 0) && *p.Rate > 0 {
		s.Rate = *p.Rate
		applied = true
	}
	return applied
}

// Project extrapolates the playback position to now. Pure: the relay calls
// it with zero latency for resync replies, a peer calls it with its measured
// half round trip. Paused state does not drift.
func Project(s PlaybackState, now time.Time, latency time.Duration) float64 {
	if !s.Playing {
		return s.Position
	}
	elapsed := now.Sub(s.UpdatedAt) + latency
	return s.Position + s.Rate*elapsed.Seconds()
}
