package domain

// RoomID is the opaque, case-sensitive, externally supplied room key.
type RoomID string

type Room struct {
	ID RoomID
}
