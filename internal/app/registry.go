package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/core"
	"github.com/aweso807-blip/syncb/internal/domain"
)

type sessionEntry struct {
	RoomID domain.RoomID
	Member *domain.Member
	Cancel context.CancelFunc
}

// Registry tracks live connection bindings: which session sits in which room
// and under which identity, plus the cancel func that tears the session's
// pumps and timers down together.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sid core.SessionID, roomID domain.RoomID, member *domain.Member, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{RoomID: roomID, Member: member, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("room", string(roomID)).Str("client", string(member.ClientID)).Msg("bound session")
}

func (r *Registry) Lookup(sid core.SessionID) (domain.RoomID, *domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", nil, false
	}
	return e.RoomID, e.Member, true
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()
	if ok && e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound session")
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CancelAll runs every session's cancel func. Used on server shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for sid, e := range r.sessions {
		entries = append(entries, e)
		delete(r.sessions, sid)
	}
	r.mu.Unlock()
	for _, e := range entries {
		if e.Cancel != nil {
			e.Cancel()
		}
	}
}
