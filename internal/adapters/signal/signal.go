package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/app/orch"
	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// ICEServer is advertised to joining peers so they can build their
// RTCPeerConnection against this deployment's STUN/TURN listener.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type Controller struct {
	Orch        *orch.Orchestrator
	JoinLimiter *JoinRateLimiter
	ICEServers  []ICEServer

	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(o *orch.Orchestrator, ice []ICEServer, readLimit int64, pingPeriod time.Duration) *Controller {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &Controller{
		Orch:        o,
		JoinLimiter: NewJoinRateLimiter(10, time.Minute),
		ICEServers:  ice,
		ReadLimit:   readLimit,
		PingPeriod:  pingPeriod,
	}
}

// WsSignalConn wraps a websocket with a bounded send queue. TrySend never
// blocks; a full queue surfaces as backpressure.
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
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
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

// BroadcastFrom fans a payload out to the sender's room mates.
func (ctl *Controller) BroadcastFrom(sid core.SessionID, v any) {
	ctl.Orch.Relay(sid, mustMarshal(v))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the HTTP request and runs the socket's pumps. The
// session identifier comes from the client-token cookie middleware.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	// Bound with an anonymous participant until join-room attaches a role.
	sess := core.NewParticipantSession(&domain.Participant{}, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
