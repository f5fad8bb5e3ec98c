// Package signal is the websocket transport adapter of the relay. It owns
// sockets, pumps and per-connection send buffers; message semantics live in
// internal/app.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/app"
	"github.com/aweso807-blip/syncb/internal/config"
	"github.com/aweso807-blip/syncb/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type WSController struct {
	Relay *app.Relay
	Cfg   *config.Config
}

func NewWSController(relay *app.Relay, cfg *config.Config) *WSController {
	return &WSController{Relay: relay, Cfg: cfg}
}

// WsConn wraps a websocket with a buffered send channel. TrySend never
// blocks: a full buffer or a closed connection drops the frame, so one bad
// peer cannot stall fan-out to the rest.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and runs its pumps. Each connection gets
// its own session id and cancelable context; the cancel func lands in the
// registry so disconnect tears down pumps and timers together.
func (ctl *WSController) HandleWS(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn)
	ctl.readPump(ctx, sid, conn, cancel)
}

const writeTimeout = 5 * time.Second
