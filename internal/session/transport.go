// Package session implements the client-side synchronization core: the
// relay transport client, the authoritative host session, and the
// replica-holding guest session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

var ErrNotConnected = errors.New("not connected to relay")
var ErrWelcomeTimeout = errors.New("timed out waiting for transport id")

const (
	StatusConnecting   = "CONNECTING"
	StatusConnected    = "CONNECTED"
	StatusDisconnected = "DISCONNECTED"
)

const (
	emitTimeout     = 3 * time.Second
	welcomeTimeout  = 10 * time.Second
	keepaliveEvery  = 30 * time.Second
	clientInboxSize = 64
)

// Conn is the relay transport as seen by a session. *Client implements it
// over a websocket; tests substitute an in-memory fake.
type Conn interface {
	ID() string
	RoomCode() string
	Emit(ctx context.Context, action protocol.Action) error
	Inbox() <-chan protocol.Action
	Status() string
	Close() error
}

type Client struct {
	conn   *websocket.Conn
	code   string
	id     string
	inbox  chan protocol.Action
	status atomic.Value
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once
	log    *zap.Logger
}

// Dial connects to the relay and joins (or, for the host, opens) the
// given room. It blocks until the relay has assigned this connection its
// participant id.
func Dial(ctx context.Context, relayURL, code string, create bool, log *zap.Logger) (*Client, error) {
	c := &Client{
		code:  code,
		inbox: make(chan protocol.Action, clientInboxSize),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		log:   log.With(zap.String("room", code)),
	}
	c.status.Store(StatusConnecting)

	url := fmt.Sprintf("%s/ws?code=%s&create=%t", relayURL, code, create)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		c.status.Store(StatusDisconnected)
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	c.conn = conn

	go c.readLoop()
	go c.keepalive()

	select {
	case <-c.ready:
		c.status.Store(StatusConnected)
		return c, nil
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	case <-time.After(welcomeTimeout):
		_ = c.Close()
		return nil, ErrWelcomeTimeout
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) RoomCode() string { return c.code }

func (c *Client) Inbox() <-chan protocol.Action { return c.inbox }

func (c *Client) Status() string { return c.status.Load().(string) }

// Emit sends one action to the relay for fan-out to the room. Delivery is
// best-effort; callers resend meaningful state on the next broadcast
// rather than relying on any single frame.
func (c *Client) Emit(ctx context.Context, action protocol.Action) error {
	if c.Status() != StatusConnected {
		return ErrNotConnected
	}
	data, err := protocol.EncodeEnvelope(protocol.Envelope{RoomCode: c.code, Action: action})
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, data)
}

func (c *Client) Close() error {
	c.once.Do(func() {
		c.status.Store(StatusDisconnected)
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
		}
	})
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		c.status.Store(StatusDisconnected)
		close(c.inbox)
	}()
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			// No retry of in-flight messages; the session layer surfaces
			// the status transition.
			return
		}
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			c.log.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		if env.Action.Type == protocol.Welcome {
			var welcome protocol.WelcomePayload
			if err := env.Action.Decode(&welcome); err == nil && c.id == "" {
				c.id = welcome.ID
				close(c.ready)
			}
			continue
		}
		select {
		case c.inbox <- env.Action:
		case <-c.done:
			return
		}
	}
}

func (c *Client) keepalive() {
	ticker := time.NewTicker(keepaliveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
			_ = c.conn.Ping(ctx)
			cancel()
		}
	}
}
