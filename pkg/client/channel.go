package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ReconnectDelay is the fixed backoff between reconnect attempts.
const ReconnectDelay = 2 * time.Second

const dialTimeout = 10 * time.Second

type ChannelState int

const (
	StateDisconnected ChannelState = iota
	StateConnecting
	StateConnected
)

// Channel is a duplex message channel to the game endpoint with
// automatic reconnect. One run loop owns the connection lifecycle
// (disconnected -> connecting -> connected), so reconnect attempts
// never overlap. Send does not queue: it reports whether the channel
// was open at call time and callers retry through their intents.
type Channel struct {
	url       string
	onConnect func()
	onMessage func([]byte)

	mu    sync.Mutex
	conn  *websocket.Conn
	state ChannelState

	cancel  context.CancelFunc
	started bool
}

func NewChannel(url string, onConnect func(), onMessage func([]byte)) *Channel {
	return &Channel{url: url, onConnect: onConnect, onMessage: onMessage}
}

// Connect starts the reconnect loop. It is a no-op if already started.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

func (c *Channel) run(ctx context.Context) {
	for {
		c.setState(StateConnecting, nil)

		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, _, err := websocket.Dial(dialCtx, c.url, nil)
		cancel()
		if err != nil {
			c.setState(StateDisconnected, nil)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.setState(StateConnected, conn)
		if c.onConnect != nil {
			c.onConnect()
		}

		c.readLoop(ctx, conn)

		c.setState(StateDisconnected, nil)
		conn.Close(websocket.StatusNormalClosure, "")
		if ctx.Err() != nil {
			return
		}
		if !c.sleep(ctx) {
			return
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

// sleep waits out the fixed backoff; false means the channel was
// deliberately disconnected meanwhile.
func (c *Channel) sleep(ctx context.Context) bool {
	select {
	case <-time.After(ReconnectDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Channel) setState(s ChannelState, conn *websocket.Conn) {
	c.mu.Lock()
	c.state = s
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send marshals v and attempts delivery, reporting whether the channel
// was open at call time. Nothing is queued on failure.
func (c *Channel) Send(v any) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateConnected
	c.mu.Unlock()
	if !open || conn == nil {
		return false
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload) == nil
}

// Disconnect closes deliberately and suppresses any further reconnect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}
