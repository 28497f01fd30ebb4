package session

import (
	"github.com/one-of-fifteen/backend/internal/engine"
	"github.com/one-of-fifteen/backend/pkg/types"
)

type Msg interface{ isSessionMsg() }

// Join registers a connection and its outbox. The current snapshot is
// sent immediately so a reconnecting client renders without waiting.
type Join struct {
	ConnID string
	Outbox chan Outbound
}

func (Join) isSessionMsg() {}

// Identify binds a connection to a session token and answers with a
// welcome carrying the resolved role.
type Identify struct {
	ConnID    string
	SessionID string
}

func (Identify) isSessionMsg() {}

type Leave struct{ ConnID string }

func (Leave) isSessionMsg() {}

// FromClient carries a client intent. Rejections are delivered to this
// connection only; accepted mutations broadcast a fresh snapshot.
type FromClient struct {
	ConnID string
	Cmd    engine.Command
}

func (FromClient) isSessionMsg() {}

// PollState answers a get_state poll: the current snapshot to the
// requesting connection only, no broadcast, no mutation.
type PollState struct{ ConnID string }

func (PollState) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// timerFired is the answer-timeout watchdog re-entering the loop. Fires
// from an earlier arming are dropped by generation.
type timerFired struct{ gen int }

func (timerFired) isSessionMsg() {}

// questionReady is the async question producer re-entering the loop.
type questionReady struct {
	gen int
	q   engine.Question
}

func (questionReady) isSessionMsg() {}

// Outbound is one server-to-client message; exactly one field is set.
type Outbound struct {
	Welcome *types.Welcome
	Update  *types.StateUpdate
	Error   *types.ErrorMessage
}

// View reflects internal state without data races; used by tests and
// the read-only HTTP endpoint.
type View struct {
	Version    int
	NumClients int
	State      engine.State
}
