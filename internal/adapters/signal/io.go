package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/core"
	"github.com/aweso807-blip/syncb/internal/protocol"
)

func (ctl *WSController) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump handles inbound messages to completion, one at a time per
// connection, so a room never sees a half-applied patch. On exit the member
// is removed and its room cleaned up.
func (ctl *WSController) readPump(ctx context.Context, sid core.SessionID, c *WsConn, cancel context.CancelFunc) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Relay.Leave(sid)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleMessage(sid, c, cancel, data)
		}
	}
}

// handleMessage routes one inbound record. Malformed payloads are dropped
// without an error reply and without closing the connection: availability
// over protocol strictness.
func (ctl *WSController) handleMessage(sid core.SessionID, c *WsConn, cancel context.CancelFunc, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(sid, c, cancel, data)
	case protocol.TypeSetHost:
		ctl.Relay.ClaimHost(sid)
	case protocol.TypeSync:
		ctl.handleSync(sid, data)
	case protocol.TypeSyncRequest:
		ctl.handleSyncRequest(sid, c)
	case protocol.TypeChat:
		ctl.handleChat(sid, data)
	case protocol.TypePing:
		ctl.handlePing(sid, c, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message type")
	}
}
