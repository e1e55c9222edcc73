package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/utils"
	"github.com/FurmanovVitaliy/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Client is the popup end of the websocket channel.
type Client struct {
	log  *slog.Logger
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]func(models.AuthResponse)
	closed  bool

	done chan struct{}
}

// Dial connects to the background process listening at url.
func Dial(ctx context.Context, log *slog.Logger, url string, header http.Header) (*Client, error) {
	const op = "channel.Dial"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn.SetReadLimit(maxMessageSize)

	c := &Client{
		log:     log.With(logger.StringAttr("url", url)),
		conn:    conn,
		pending: make(map[string]func(models.AuthResponse)),
		done:    make(chan struct{}),
	}
	go c.readPump()

	return c, nil
}

// Send writes the request and registers reply for its answer. The callback is
// dropped without being called if the connection goes away first.
func (c *Client) Send(req models.AuthRequest, reply func(models.AuthResponse)) error {
	const op = "channel.Client.Send"

	if !req.Action.Valid() {
		return ErrInvalidAction
	}

	id := utils.GenerateSimpleID()
	data, err := json.Marshal(envelope{ID: id, Request: &req})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()

	if err := c.write(websocket.TextMessage, data); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) readPump() {
	defer close(c.done)
	defer c.shutdown()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("channel closed unexpectedly", logger.ErrAttr(err))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("invalid frame from background", logger.ErrAttr(err))
			continue
		}

		c.mu.Lock()
		reply, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()

		if !ok {
			c.log.Warn("reply for unknown request", logger.StringAttr("id", env.ID))
			continue
		}

		var resp models.AuthResponse
		if env.Response != nil {
			resp = *env.Response
		}
		reply(resp)
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) > 0 {
		c.log.Warn("dropping unanswered requests", slog.Int("count", len(c.pending)))
	}
	c.closed = true
	c.pending = make(map[string]func(models.AuthResponse))
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close sends a close frame and waits for the read loop to stop.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.write(websocket.CloseMessage, msg); err != nil {
		c.conn.Close()
		<-c.done
		return nil
	}

	select {
	case <-c.done:
	case <-time.After(writeWait):
	}
	return c.conn.Close()
}
