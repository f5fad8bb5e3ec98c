package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/domain"
	"github.com/aweso807-blip/syncb/internal/protocol"
)

const (
	DefaultPingInterval   = 2 * time.Second
	DefaultResyncInterval = 1500 * time.Millisecond
)

// Session is one participant's endpoint: a websocket to the relay, the
// reconciler driving the local player, and the background ping/resync
// loops. There is no auto-reconnect; a dropped session surfaces as a status
// line and a fresh Dial is a user decision.
type Session struct {
	conn  *websocket.Conn
	clock clockwork.Clock
	rec   *Reconciler

	roomID   domain.RoomID
	clientID domain.ClientID
	username string

	pingInterval   time.Duration
	resyncInterval time.Duration

	wmu sync.Mutex

	OnStatus func(string)
	OnChat   func(protocol.ChatEvent)
	OnCount  func(int)
}

type SessionOptions struct {
	RoomID         domain.RoomID
	ClientID       domain.ClientID
	Username       string
	Clock          clockwork.Clock
	PingInterval   time.Duration
	ResyncInterval time.Duration
}

// Dial connects to the relay and binds the session to its room.
func Dial(ctx context.Context, url string, player Player, opts SessionOptions) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.ResyncInterval <= 0 {
		opts.ResyncInterval = DefaultResyncInterval
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	s := &Session{
		conn:           conn,
		clock:          opts.Clock,
		roomID:         opts.RoomID,
		clientID:       opts.ClientID,
		username:       opts.Username,
		pingInterval:   opts.PingInterval,
		resyncInterval: opts.ResyncInterval,
	}
	s.rec = NewReconciler(player, opts.Clock, opts.ClientID, func(p domain.Patch) {
		s.sendPatch(context.Background(), p)
	})

	if err := s.write(ctx, protocol.Join{
		Type:     protocol.TypeJoin,
		RoomID:   string(opts.RoomID),
		ClientID: string(opts.ClientID),
		Username: opts.Username,
	}); err != nil {
		_ = conn.Close(websocket.StatusAbnormalClosure, "join failed")
		return nil, err
	}
	return s, nil
}

func (s *Session) Reconciler() *Reconciler { return s.rec }

// Run consumes relayed events and drives the periodic loops until the
// context ends or the connection drops. The tickers die with the session:
// they share its context, so a closed session leaves no dangling timers.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.conn.Close(websocket.StatusNormalClosure, "bye")

	frames := make(chan []byte, 16)
	errc := make(chan error, 1)
	go func() {
		for {
			_, data, err := s.conn.Read(ctx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	pingTicker := s.clock.NewTicker(s.pingInterval)
	defer pingTicker.Stop()
	resyncTicker := s.clock.NewTicker(s.resyncInterval)
	defer resyncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			s.status(fmt.Sprintf("disconnected: %v", err))
			return err
		case data := <-frames:
			s.handleFrame(data)
		case <-pingTicker.Chan():
			_ = s.write(ctx, protocol.Ping{Type: protocol.TypePing, TS: s.clock.Now().UnixMilli()})
		case <-resyncTicker.Chan():
			// Pull-based backstop against missed push events; the host is
			// the source of truth and never pulls.
			if !s.rec.IsHost() {
				_ = s.write(ctx, protocol.Envelope{Type: protocol.TypeSyncRequest})
			}
		}
	}
}

func (s *Session) handleFrame(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "client.session").Msg("bad frame")
		return
	}

	switch env.Type {
	case protocol.TypeRoomState:
		var msg protocol.RoomState
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		s.rec.SetHost(domain.ClientID(msg.HostID))
		if s.rec.IsHost() {
			s.status(fmt.Sprintf("joined %q as host (%d watching)", s.roomID, msg.UserCount))
		} else {
			s.status(fmt.Sprintf("joined %q (%d watching)", s.roomID, msg.UserCount))
		}
		s.rec.ApplyRemote(msg.State.ToDomain())

	case protocol.TypeHostChanged:
		var msg protocol.HostChanged
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		s.rec.SetHost(domain.ClientID(msg.HostID))
		if s.rec.IsHost() {
			s.status("you are now the host")
		} else {
			s.status("host changed")
		}

	case protocol.TypeSync:
		var msg protocol.SyncState
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		s.rec.SetHost(domain.ClientID(msg.HostID))
		if !s.rec.IsHost() {
			s.rec.ApplyRemote(msg.State.ToDomain())
		}

	case protocol.TypeUserCount:
		var msg protocol.UserCount
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		if s.OnCount != nil {
			s.OnCount(msg.Count)
		}

	case protocol.TypeChat:
		var msg protocol.ChatEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		if s.OnChat != nil {
			s.OnChat(msg)
		}

	case protocol.TypePong:
		var msg protocol.Pong
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		rtt := s.clock.Now().UnixMilli() - msg.TS
		if rtt >= 0 {
			s.rec.SetLatency(time.Duration(rtt) * time.Millisecond / 2)
		}
	}
}

// ClaimHost asks the relay to reseat the host on this client.
func (s *Session) ClaimHost(ctx context.Context) error {
	return s.write(ctx, protocol.Envelope{Type: protocol.TypeSetHost})
}

func (s *Session) SendChat(ctx context.Context, text string) error {
	return s.write(ctx, protocol.Chat{Type: protocol.TypeChat, Text: text})
}

func (s *Session) sendPatch(ctx context.Context, p domain.Patch) {
	if err := s.write(ctx, protocol.SyncPatch{Type: protocol.TypeSync, Patch: protocol.FromDomain(p)}); err != nil {
		log.Debug().Err(err).Str("module", "client.session").Msg("patch send failed")
	}
}

func (s *Session) write(ctx context.Context, v any) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return wsjson.Write(ctx, s.conn, v)
}

func (s *Session) status(line string) {
	if s.OnStatus != nil {
		s.OnStatus(line)
	}
}
