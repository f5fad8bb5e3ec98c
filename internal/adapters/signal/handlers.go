package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/core"
	"github.com/aweso807-blip/syncb/internal/protocol"
)

func (ctl *WSController) handleJoin(sid core.SessionID, c *WsConn, cancel context.CancelFunc, data []byte) {
	var p protocol.Join
	if err := json.Unmarshal(data, &p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad join payload")
		return
	}
	ctl.Relay.Join(sid, c, p, cancel)
}

func (ctl *WSController) handleSync(sid core.SessionID, data []byte) {
	var p struct {
		Type  string          `json:"type"`
		Patch json.RawMessage `json:"patch"`
	}
	if err := json.Unmarshal(data, &p); err != nil || len(p.Patch) == 0 {
		return
	}
	ctl.Relay.ApplyPatch(sid, protocol.DecodePatch(p.Patch))
}

func (ctl *WSController) handleSyncRequest(sid core.SessionID, c *WsConn) {
	frame, ok := ctl.Relay.SyncRequest(sid)
	if !ok {
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *WSController) handleChat(sid core.SessionID, data []byte) {
	var p protocol.Chat
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	ctl.Relay.ChatMessage(sid, p.Text)
}

func (ctl *WSController) handlePing(sid core.SessionID, c *WsConn, data []byte) {
	var p protocol.Ping
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	frame, ok := ctl.Relay.Ping(sid, p.TS)
	if !ok {
		return
	}
	_ = c.TrySend(frame)
}
