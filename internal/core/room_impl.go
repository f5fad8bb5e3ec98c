package core

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/domain"
)

// roomImpl is a threadsafe in-memory room. All mutation of playback state
// and membership is serialized under one lock so UpdatedAt stays monotonic
// and the room never carries more than one host.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	clock clockwork.Clock

	mu       sync.RWMutex
	state    domain.PlaybackState
	hostID   domain.ClientID
	bySID    map[SessionID]MemberSession
	byClient map[domain.ClientID]SessionID
}

func NewRoomService(room *domain.Room, clock clockwork.Clock) RoomService {
	return &roomImpl{
		room:     room,
		clock:    clock,
		state:    domain.NewPlaybackState(clock.Now()),
		bySID:    make(map[SessionID]MemberSession),
		byClient: make(map[domain.ClientID]SessionID),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) HostID() domain.ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostID
}

// AddMember registers the session and seats it as host when the room is
// hostless. Initial assignment is not broadcast; the join reply carries it.
func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) {
	cid := ms.Meta().ClientID
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ms
	r.byClient[cid] = sid
	if r.hostID == "" {
		r.hostID = cid
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("sid", string(sid)).Str("client", string(cid)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) RemoveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return RemoveResult{Empty: len(r.bySID) == 0}
	}
	cid := ms.Meta().ClientID
	delete(r.bySID, sid)
	if r.byClient[cid] == sid {
		delete(r.byClient, cid)
	}

	res := RemoveResult{Removed: true, Empty: len(r.bySID) == 0}
	if r.hostID == cid {
		r.hostID = r.pickAnyHostLocked()
		res.HostChanged = true
		res.NewHostID = r.hostID
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("sid", string(sid)).Bool("host_changed", res.HostChanged).Msg("member removed")
	return res
}

// pickAnyHostLocked returns an arbitrary remaining member, or "" for an
// empty room. Iteration order is fine: no fairness is promised.
func (r *roomImpl) pickAnyHostLocked() domain.ClientID {
	for _, ms := range r.bySID {
		return ms.Meta().ClientID
	}
	return ""
}

// ClaimHost is unconditional: the protocol has no fencing token, the latest
// claim wins.
func (r *roomImpl) ClaimHost(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostID = id
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("client", string(id)).Msg("host claimed")
}

// ApplyPatch mutates the playback state when the requester is the current
// host. Anything else is a silent no-op: the guard is "does clientId match
// hostId", which is spoofable but matches the cooperative trust model.
// UpdatedAt strictly advances on every accepted patch.
func (r *roomImpl) ApplyPatch(requester domain.ClientID, p domain.Patch) (domain.PlaybackState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if requester == "" || requester != r.hostID {
		return r.state, false
	}
	if !r.state.Apply(p) {
		return r.state, false
	}
	now := r.clock.Now()
	if !now.After(r.state.UpdatedAt) {
		now = r.state.UpdatedAt.Add(time.Millisecond)
	}
	r.state.UpdatedAt = now
	return r.state, true
}

// Snapshot reads the room with the position projected to now. Used for join
// replies and resync pulls; the relay passes zero latency.
func (r *roomImpl) Snapshot(latency time.Duration) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.clock.Now()
	st := r.state
	st.Position = domain.Project(r.state, now, latency)
	st.UpdatedAt = now
	return Snapshot{HostID: r.hostID, MemberCount: len(r.bySID), State: st}
}

// Broadcast fans the frame out to every member except from. Delivery is
// best-effort per recipient: a peer that cannot take the frame is skipped,
// never waited on, and the rest still get it.
func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", res.Dropped).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, ms := range r.bySID {
		m := ms.Meta()
		out = append(out, MemberDTO{ID: m.ClientID, Username: m.Username})
	}
	return out
}
