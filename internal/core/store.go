package core

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/aweso807-blip/syncb/internal/domain"
)

// Store owns the room registry: create-on-miss, delete-on-empty are explicit
// methods instead of ambient global state.
type Store struct {
	clock clockwork.Clock
	mu    sync.RWMutex
	rooms map[domain.RoomID]RoomService
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{clock: clock, rooms: make(map[domain.RoomID]RoomService)}
}

func (s *Store) GetOrCreate(id domain.RoomID) RoomService {
	s.mu.RLock()
	room, ok := s.rooms[id]
	s.mu.RUnlock()
	if ok {
		return room
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok = s.rooms[id]; ok {
		return room
	}
	room = NewRoomService(&domain.Room{ID: id}, s.clock)
	s.rooms[id] = room
	return room
}

func (s *Store) Get(id domain.RoomID) (RoomService, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

func (s *Store) List() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomInfo, 0, len(s.rooms))
	for id, r := range s.rooms {
		snap := r.Snapshot(0)
		out = append(out, RoomInfo{
			ID:          id,
			MemberCount: snap.MemberCount,
			MediaRef:    snap.State.MediaRef,
			Playing:     snap.State.Playing,
		})
	}
	return out
}

func (s *Store) Remove(id domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}
