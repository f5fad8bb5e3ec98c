package domain

import "strings"

const MaxUsernameLen = 40

type ClientID string

// Member is a client's participation meta within a room.
// No transport or lifecycle logic here.
type Member struct {
	ClientID ClientID
	Username string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id ClientID, username string) *Member {
	return &Member{ClientID: id, Username: SanitizeUsername(username, DefaultUsername(id))}
}

// DefaultUsername derives a display name from the client identifier.
// Truncation is rune-wise so multi-byte identifiers stay valid UTF-8.
func DefaultUsername(id ClientID) string {
	r := []rune(string(id))
	if len(r) > 4 {
		r = r[:4]
	}
	return "guest-" + string(r)
}

// SanitizeUsername collapses whitespace, trims, caps the rune length and
// falls back when nothing printable remains.
func SanitizeUsername(name, fallback string) string {
	trimmed := strings.Join(strings.Fields(name), " ")
	if trimmed == "" {
		return fallback
	}
	if r := []rune(trimmed); len(r) > MaxUsernameLen {
		trimmed = string(r[:MaxUsernameLen])
	}
	return trimmed
}
