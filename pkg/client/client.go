package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/one-of-fifteen/backend/pkg/types"
)

// PollInterval is how often a connected client reconciles with a
// get_state poll, as a backstop against silently dropped pushes.
const PollInterval = 2 * time.Second

// Client ties the identity store, the reconnecting channel, and the
// view reducer together into the full consumption contract: identify on
// every (re)connect, mirror snapshots by full overwrite, poll while
// connected, and expose intents that report whether the channel was
// open.
type Client struct {
	gameID string
	store  *Store
	ch     *Channel

	mu     sync.Mutex
	update types.StateUpdate
	role   string // "", "presenter", "contestant"
	synced bool

	// OnUpdate fires after every snapshot overwrite; OnError after
	// every rejection addressed to this client. Both optional.
	OnUpdate func(types.StateUpdate)
	OnError  func(string)
}

// New builds a client for one game. wsURL is the full websocket
// endpoint, e.g. "ws://host:8080/ws?game=one-of-fifteen".
func New(wsURL, gameID string, store *Store) *Client {
	if store == nil {
		store = NewStore()
	}
	c := &Client{gameID: gameID, store: store}
	c.ch = NewChannel(wsURL, c.identify, c.handleMessage)
	return c
}

// Start opens the channel and begins the reconcile poll. Cancel ctx or
// call Disconnect to stop.
func (c *Client) Start(ctx context.Context) {
	c.ch.Connect(ctx)
	go c.pollLoop(ctx)
}

func (c *Client) Disconnect() { c.ch.Disconnect() }

func (c *Client) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.ch.Send(types.ClientMessage{Type: types.MsgGetState})
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) identify() {
	c.ch.Send(types.ClientMessage{
		Type:      types.MsgIdentify,
		SessionID: c.store.GetOrCreate(c.gameID),
	})
}

// Logout drops the identity: the next connect (or the re-identify sent
// right away if connected) starts as a fresh unbound participant.
func (c *Client) Logout() {
	c.store.Clear(c.gameID)
	c.mu.Lock()
	c.role = ""
	c.mu.Unlock()
	if c.ch.State() == StateConnected {
		c.identify()
	}
}

func (c *Client) handleMessage(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return
	}

	switch head.Type {
	case types.MsgWelcome:
		var w types.Welcome
		if err := json.Unmarshal(data, &w); err != nil {
			return
		}
		c.mu.Lock()
		if w.Role != nil {
			c.role = *w.Role
		} else {
			c.role = ""
		}
		c.mu.Unlock()

	case types.MsgStateUpdate:
		var u types.StateUpdate
		if err := json.Unmarshal(data, &u); err != nil {
			return
		}
		// Full overwrite, never a merge: push and poll results are
		// treated identically.
		c.mu.Lock()
		c.update = u
		c.synced = true
		onUpdate := c.OnUpdate
		c.mu.Unlock()
		if onUpdate != nil {
			onUpdate(u)
		}

	case types.MsgError:
		var e types.ErrorMessage
		if err := json.Unmarshal(data, &e); err != nil {
			return
		}
		if c.OnError != nil {
			c.OnError(e.Message)
		}
	}
}

// SessionID returns this client's identity token.
func (c *Client) SessionID() string { return c.store.GetOrCreate(c.gameID) }

// Role returns the last welcomed role, "" while unbound.
func (c *Client) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Snapshot returns the last mirrored state and whether any snapshot has
// arrived yet.
func (c *Client) Snapshot() (types.StateUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update, c.synced
}

// CurrentView derives the UI view from the mirrored snapshot.
func (c *Client) CurrentView() View {
	u, _ := c.Snapshot()
	return DeriveView(u, c.SessionID())
}

// Intents. Each returns whether the channel was open at call time; the
// server's next snapshot or error message carries the outcome. There is
// no client-side retry: legality is re-derived from the next snapshot.

func (c *Client) JoinPresenter() bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgJoinPresenter})
}

func (c *Client) JoinContestant(name, age string) bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgJoinContestant, Name: name, Age: age})
}

func (c *Client) ToggleReady() bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgToggleReady})
}

func (c *Client) StartGame() bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgStartGame})
}

func (c *Client) ResetGame() bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgResetGame})
}

func (c *Client) PointToPlayer(targetID string) bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgPointToPlayer, TargetID: targetID})
}

func (c *Client) BuzzIn() bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgBuzzIn})
}

func (c *Client) MakeDecision(choice, targetID string) bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgMakeDecision, Choice: choice, TargetID: targetID})
}

func (c *Client) SubmitAnswer(answer string) bool {
	return c.ch.Send(types.ClientMessage{Type: types.MsgSubmitAnswer, Answer: answer})
}

// SubmitTimeout reports an expired local countdown with the sentinel
// answer. The server runs its own watchdog; this just resolves the turn
// sooner.
func (c *Client) SubmitTimeout() bool {
	return c.SubmitAnswer("!!!TIMEOUT!!!")
}
