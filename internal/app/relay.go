package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/core"
	"github.com/aweso807-blip/syncb/internal/domain"
	"github.com/aweso807-blip/syncb/internal/protocol"
)

// Relay is the transport-free message router: it binds sessions to rooms,
// applies host-guarded patches, and fans events out through the room's
// membership set. The websocket adapter owns sockets and pumps; Relay owns
// semantics.
type Relay struct {
	Rooms    core.RoomFactory
	Registry *Registry
	Clock    clockwork.Clock
	Chat     *RateLimiter
}

func NewRelay(rooms core.RoomFactory, reg *Registry, clock clockwork.Clock, chat *RateLimiter) *Relay {
	return &Relay{Rooms: rooms, Registry: reg, Clock: clock, Chat: chat}
}

func marshal(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal")
		return nil, false
	}
	return b, true
}

// Join binds the session to a room, creating the room on first sight.
// The first joiner of a hostless room becomes host. The sender gets the
// room_state snapshot first, then everyone, sender included, gets the
// updated user count. A rejoin on a bound session leaves the old room
// first, so a session never sits in two rooms.
func (rl *Relay) Join(sid core.SessionID, conn core.SignalConnection, msg protocol.Join, cancel context.CancelFunc) bool {
	roomID := domain.RoomID(strings.TrimSpace(msg.RoomID))
	clientID := domain.ClientID(strings.TrimSpace(msg.ClientID))
	if roomID == "" || clientID == "" {
		return false
	}
	if _, _, bound := rl.Registry.Lookup(sid); bound {
		rl.Leave(sid)
	}

	member := domain.NewMember(clientID, msg.Username)
	room := rl.Rooms.GetOrCreate(roomID)
	room.AddMember(sid, core.NewMemberSession(member, conn))
	rl.Registry.Bind(sid, roomID, member, cancel)

	snap := room.Snapshot(0)
	if reply, ok := marshal(protocol.RoomState{
		Type:      protocol.TypeRoomState,
		HostID:    string(snap.HostID),
		UserCount: snap.MemberCount,
		State:     protocol.StateFromDomain(snap.State),
	}); ok {
		_ = conn.TrySend(reply)
	}

	rl.broadcastUserCount(room)
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).
		Str("room", string(roomID)).Str("client", string(clientID)).Msg("join")
	return true
}

// Leave removes the session's membership, reassigns the host if the host
// left, and destroys the room once its last member is gone.
func (rl *Relay) Leave(sid core.SessionID) {
	roomID, member, ok := rl.Registry.Lookup(sid)
	if !ok {
		return
	}
	if rl.Chat != nil {
		rl.Chat.Forget(member.ClientID)
	}
	room, ok := rl.Rooms.Get(roomID)
	if !ok {
		rl.Registry.Unbind(sid)
		return
	}

	res := room.RemoveMember(sid)
	if res.HostChanged && !res.Empty {
		if frame, ok := marshal(protocol.HostChanged{Type: protocol.TypeHostChanged, HostID: string(res.NewHostID)}); ok {
			room.Broadcast(core.NoSender, frame)
		}
	}
	if !res.Empty {
		rl.broadcastUserCount(room)
	} else {
		rl.Rooms.Remove(roomID)
		log.Info().Str("module", "app.relay").Str("room", string(roomID)).Msg("room destroyed")
	}
	rl.Registry.Unbind(sid)
}

// ClaimHost reseats the host on the claiming member, no questions asked:
// last claim wins. Everyone, the claimant included, hears about it.
func (rl *Relay) ClaimHost(sid core.SessionID) {
	roomID, member, ok := rl.Registry.Lookup(sid)
	if !ok {
		return
	}
	room, ok := rl.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.ClaimHost(member.ClientID)
	if frame, ok := marshal(protocol.HostChanged{Type: protocol.TypeHostChanged, HostID: string(member.ClientID)}); ok {
		room.Broadcast(core.NoSender, frame)
	}
}

// ApplyPatch applies a host-only playback patch. Non-host patches are a
// silent no-op with no broadcast. On success the literal (non-projected)
// state goes to every member except the sender, who already holds ground
// truth locally.
func (rl *Relay) ApplyPatch(sid core.SessionID, p domain.Patch) {
	roomID, member, ok := rl.Registry.Lookup(sid)
	if !ok {
		return
	}
	room, ok := rl.Rooms.Get(roomID)
	if !ok {
		return
	}
	st, applied := room.ApplyPatch(member.ClientID, p)
	if !applied {
		log.Debug().Str("module", "app.relay").Str("sid", string(sid)).Msg("patch rejected")
		return
	}
	frame, ok := marshal(protocol.SyncState{
		Type:   protocol.TypeSync,
		HostID: string(room.HostID()),
		State:  protocol.StateFromDomain(st),
	})
	if ok {
		room.Broadcast(sid, frame)
	}
}

// Ping echoes the client timestamp for latency probes. An unbound session
// gets nothing back, same as every other pre-join message.
func (rl *Relay) Ping(sid core.SessionID, ts int64) (core.Frame, bool) {
	if _, _, ok := rl.Registry.Lookup(sid); !ok {
		return nil, false
	}
	return marshal(protocol.Pong{Type: protocol.TypePong, TS: ts})
}

// SyncRequest answers a pull with a projected snapshot (zero latency bias;
// this is a server-side reply, not a peer estimate).
func (rl *Relay) SyncRequest(sid core.SessionID) (core.Frame, bool) {
	roomID, _, ok := rl.Registry.Lookup(sid)
	if !ok {
		return nil, false
	}
	room, ok := rl.Rooms.Get(roomID)
	if !ok {
		return nil, false
	}
	snap := room.Snapshot(0)
	return marshal(protocol.SyncState{
		Type:   protocol.TypeSync,
		HostID: string(snap.HostID),
		State:  protocol.StateFromDomain(snap.State),
	})
}

// ChatMessage broadcasts a trimmed, length-capped chat line to the whole
// room, sender included as delivery confirmation. Flooding clients are
// silently throttled.
func (rl *Relay) ChatMessage(sid core.SessionID, text string) {
	roomID, member, ok := rl.Registry.Lookup(sid)
	if !ok {
		return
	}
	room, ok := rl.Rooms.Get(roomID)
	if !ok {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if r := []rune(text); len(r) > protocol.MaxChatLen {
		text = string(r[:protocol.MaxChatLen])
	}
	if rl.Chat != nil && !rl.Chat.Allow(member.ClientID) {
		log.Debug().Str("module", "app.relay").Str("client", string(member.ClientID)).Msg("chat throttled")
		return
	}
	frame, ok := marshal(protocol.ChatEvent{
		Type:     protocol.TypeChat,
		ClientID: string(member.ClientID),
		Username: member.Username,
		Text:     text,
		TS:       rl.Clock.Now().UnixMilli(),
	})
	if ok {
		room.Broadcast(core.NoSender, frame)
	}
}

func (rl *Relay) broadcastUserCount(room core.RoomService) {
	frame, ok := marshal(protocol.UserCount{Type: protocol.TypeUserCount, Count: room.MemberCount()})
	if ok {
		room.Broadcast(core.NoSender, frame)
	}
}
