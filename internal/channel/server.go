package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/utils"
	"github.com/FurmanovVitaliy/logger"
	"github.com/gorilla/websocket"
)

// Server is the background end of the websocket channel. It is an http.Handler
// that upgrades each request and serves AuthRequests with a Handler.
type Server struct {
	log      *slog.Logger
	handler  Handler
	timeout  time.Duration
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*serverConn]struct{}

	onConnect    func()
	onDisconnect func()
}

// NewServer creates a channel server. An empty origins list accepts any origin.
func NewServer(log *slog.Logger, handler Handler, timeout time.Duration, origins []string) *Server {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return &Server{
		log:     log,
		handler: handler,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		conns: make(map[*serverConn]struct{}),
	}
}

// SetConnHooks registers callbacks run when a popup connects and disconnects.
// Must be called before serving.
func (s *Server) SetConnHooks(onConnect, onDisconnect func()) {
	s.onConnect = onConnect
	s.onDisconnect = onDisconnect
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "channel.Server.ServeHTTP"
	log := s.log.With(
		logger.StringAttr("op", op),
		logger.StringAttr("remote", r.RemoteAddr),
	)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", logger.ErrAttr(err))
		return
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	ctx, cancel := context.WithCancel(utils.WithClientInfo(context.Background(), utils.ClientInfo{
		UserAgent: r.UserAgent(),
		IP:        host,
	}))
	sc := &serverConn{
		log:    log,
		srv:    s,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}

	s.mu.Lock()
	s.conns[sc] = struct{}{}
	s.mu.Unlock()

	log.Info("popup connected")
	if s.onConnect != nil {
		s.onConnect()
	}
	sc.serve()
	if s.onDisconnect != nil {
		s.onDisconnect()
	}

	s.mu.Lock()
	delete(s.conns, sc)
	s.mu.Unlock()
	log.Info("popup disconnected")
}

// Close drops every open connection. In-flight requests are canceled.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		sc.cancel()
		sc.conn.Close()
	}
}

type serverConn struct {
	log    *slog.Logger
	srv    *Server
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func (c *serverConn) serve() {
	defer func() {
		c.cancel()
		c.wg.Wait()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("failed to set read deadline", logger.ErrAttr(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.wg.Add(1)
	go c.pingLoop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected close", logger.ErrAttr(err))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Request == nil || env.ID == "" {
			c.log.Warn("invalid frame from popup")
			continue
		}

		c.wg.Add(1)
		go c.handle(env.ID, *env.Request)
	}
}

func (c *serverConn) handle(id string, req models.AuthRequest) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.srv.timeout)
	defer cancel()

	resp := c.srv.handler.Handle(ctx, req)

	data, err := json.Marshal(envelope{ID: id, Response: &resp})
	if err != nil {
		c.log.Error("failed to marshal response", logger.ErrAttr(err))
		return
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		c.log.Warn("failed to write response",
			logger.StringAttr("action", string(req.Action)),
			logger.ErrAttr(err),
		)
	}
}

func (c *serverConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *serverConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
