package protocol

import (
	"encoding/json"

	"github.com/aweso807-blip/syncb/internal/domain"
)

// Patch is the outbound form of a partial playback update: only changed
// fields are present.
type Patch struct {
	MediaRef *string  `json:"mediaRef,omitempty"`
	Playing  *bool    `json:"playing,omitempty"`
	Position *float64 `json:"position,omitempty"`
	Rate     *float64 `json:"rate,omitempty"`
}

type SyncPatch struct {
	Type  string `json:"type"`
	Patch Patch  `json:"patch"`
}

// DecodePatch reads a patch field by field so one type-mismatched field
// cannot poison the rest: a patch with a valid "playing" and a string
// "position" still applies the play change. Unknown keys are ignored.
func DecodePatch(raw json.RawMessage) domain.Patch {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Patch{}
	}
	var p domain.Patch
	if v, ok := fields["mediaRef"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			p.MediaRef = &s
		}
	}
	if v, ok := fields["playing"]; ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			p.Playing = &b
		}
	}
	if v, ok := fields["position"]; ok {
		var f float64
		if json.Unmarshal(v, &f) == nil {
			p.Position = &f
		}
	}
	if v, ok := fields["rate"]; ok {
		var f float64
		if json.Unmarshal(v, &f) == nil {
			p.Rate = &f
		}
	}
	return p
}

// FromDomain converts a validated patch back to its wire form.
func FromDomain(p domain.Patch) Patch {
	return Patch{MediaRef: p.MediaRef, Playing: p.Playing, Position: p.Position, Rate: p.Rate}
}
