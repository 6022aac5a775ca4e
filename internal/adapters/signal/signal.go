package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Orbit/internal/app/orch"
	"github.com/dkeye/Orbit/internal/auth"
	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

// pongWait is how long a silent peer is tolerated.
func (o Options) pongWait() time.Duration {
	return o.PingPeriod * 10 / 9
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	opts Options
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{Orch: o, opts: opts.withDefaults()}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
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

// NewConnID derives a connection id from the client token cookie.
func NewConnID(clientToken string) domain.ConnID {
	id := uuid.NewString()
	if len(clientToken) >= 8 {
		return domain.ConnID(clientToken[:8] + "-" + id)
	}
	return domain.ConnID(id)
}

// HandleSignal upgrades the request and runs the connection until either side
// closes it. The identity is whatever the auth middleware established.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, id auth.Identity) {
	connID := NewConnID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("conn", string(connID)).Bool("anonymous", id.Anonymous()).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(connID, conn, cancel)
	ctl.Orch.OnConnect(connID, id.User, id.Groups)
	metrics.SignalingEventsTotal.WithLabelValues("connect").Inc()

	go ctl.writePump(ctx, connID, conn)
	go ctl.readPump(ctx, cancel, connID, conn)
}
