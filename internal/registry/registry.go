package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/one-of-fifteen/backend/internal/engine"
	"github.com/one-of-fifteen/backend/internal/questions"
	"github.com/one-of-fifteen/backend/internal/session"
)

type Msg interface{ isRegistryMsg() }

// EnsureSession resolves the session for a game id, creating it lazily
// on first use. Same id, same pointer.
type EnsureSession struct {
	GameID string
	Reply  chan *session.Session
}

type GetSession struct {
	GameID string
	Reply  chan *session.Session
}

type RemoveSession struct{ GameID string }

type ShutdownRegistry struct{}

func (EnsureSession) isRegistryMsg()    {}
func (GetSession) isRegistryMsg()       {}
func (RemoveSession) isRegistryMsg()    {}
func (ShutdownRegistry) isRegistryMsg() {}

// Registry owns the map of live game sessions, keyed by game id. It is
// an actor like the sessions it manages, so creation is race-free.
type Registry struct {
	inbox         chan Msg
	sessions      map[string]*session.Session
	newSource     func() questions.Source
	answerTimeout time.Duration
	log           *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
}

func New(parent context.Context, newSource func() questions.Source, answerTimeout time.Duration, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		inbox:         make(chan Msg, 64),
		sessions:      make(map[string]*session.Session),
		newSource:     newSource,
		answerTimeout: answerTimeout,
		log:           log,
		ctx:           ctx,
		cancel:        cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

// Ensure is a convenience wrapper around EnsureSession.
func (r *Registry) Ensure(gameID string) *session.Session {
	reply := make(chan *session.Session, 1)
	r.inbox <- EnsureSession{GameID: gameID, Reply: reply}
	return <-reply
}

// Get returns the session for a game id, or nil.
func (r *Registry) Get(gameID string) *session.Session {
	reply := make(chan *session.Session, 1)
	r.inbox <- GetSession{GameID: gameID, Reply: reply}
	return <-reply
}

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case EnsureSession:
				if s := r.sessions[msg.GameID]; s != nil {
					msg.Reply <- s
					break
				}
				r.log.Info("creating game session", zap.String("game", msg.GameID))
				s := session.New(r.ctx, engine.NewState(), r.newSource(), r.answerTimeout,
					r.log.With(zap.String("game", msg.GameID)))
				r.sessions[msg.GameID] = s
				msg.Reply <- s

			case GetSession:
				msg.Reply <- r.sessions[msg.GameID] // may be nil

			case RemoveSession:
				if s := r.sessions[msg.GameID]; s != nil {
					s.Inbox() <- session.Shutdown{}
					delete(r.sessions, msg.GameID)
				}

			case ShutdownRegistry:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) shutdown() {
	for id, s := range r.sessions {
		s.Inbox() <- session.Shutdown{}
		delete(r.sessions, id)
	}
	r.cancel()
}
