package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/one-of-fifteen/backend/internal/engine"
	"github.com/one-of-fifteen/backend/internal/questions"
	"github.com/one-of-fifteen/backend/pkg/types"
)

const questionRetryDelay = 2 * time.Second

type client struct {
	outbox    chan Outbound
	sessionID string // "" until the connection identifies
}

// Session is the single serialized owner of one game's state. All
// mutating intents funnel through its inbox and are applied one at a
// time, so races like simultaneous buzzes resolve to exactly one
// winner.
type Session struct {
	inbox         chan Msg
	state         engine.State
	version       int
	clients       map[string]*client
	source        questions.Source
	answerTimeout time.Duration
	log           *zap.Logger

	timer    *time.Timer
	timerGen int
	qGen     int

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, initial engine.State, src questions.Source, answerTimeout time.Duration, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}

	s := &Session{
		inbox:         make(chan Msg, 64),
		state:         initial,
		clients:       make(map[string]*client),
		source:        src,
		answerTimeout: answerTimeout,
		log:           log,
		ctx:           ctx,
		cancel:        cancel,
	}

	go s.loop()
	return s
}

// Inbox exposes the message channel to the transport layer and tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.clients[msg.ConnID] = &client{outbox: msg.Outbox}
				msg.Outbox <- Outbound{Update: s.snapshot()}

			case Identify:
				s.handleIdentify(msg)

			case Leave:
				s.handleLeave(msg.ConnID)

			case FromClient:
				s.handleCommand(msg)

			case PollState:
				if c := s.clients[msg.ConnID]; c != nil {
					s.push(msg.ConnID, c, Outbound{Update: s.snapshot()})
				}

			case GetState:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					State:      s.state,
				}

			case timerFired:
				s.handleTimerFired(msg)

			case questionReady:
				s.handleQuestionReady(msg)

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

// handleIdentify always answers with a welcome: an empty or unknown
// token resolves to a null role rather than being silently ignored.
func (s *Session) handleIdentify(msg Identify) {
	c := s.clients[msg.ConnID]
	if c == nil {
		return
	}

	prev := c.sessionID
	c.sessionID = msg.SessionID
	if prev != "" && prev != msg.SessionID {
		// The old binding just lost this connection. If no other tab
		// holds it, it goes offline exactly as a disconnect would.
		s.markOfflineIfUnheld(prev)
		if s.clients[msg.ConnID] == nil {
			return // dropped during the offline broadcast
		}
	}

	role, bound := engine.RoleOf(s.state, msg.SessionID)
	var rolePtr *string
	if bound {
		r := string(role)
		rolePtr = &r
	}
	s.push(msg.ConnID, c, Outbound{Welcome: &types.Welcome{Type: types.MsgWelcome, Role: rolePtr}})
	if s.clients[msg.ConnID] == nil {
		return
	}

	if bound {
		// A bound session coming back online is a visible mutation; the
		// commit broadcast carries the snapshot to this connection too.
		s.applyInternal(engine.Command{
			Type:      engine.CmdSetOnline,
			SessionID: msg.SessionID,
			Online:    true,
		})
		return
	}
	if c2 := s.clients[msg.ConnID]; c2 != nil {
		s.push(msg.ConnID, c2, Outbound{Update: s.snapshot()})
	}
}

func (s *Session) handleLeave(connID string) {
	c := s.clients[connID]
	if c == nil {
		return
	}
	delete(s.clients, connID)
	close(c.outbox)
	s.markOfflineIfUnheld(c.sessionID)
}

// markOfflineIfUnheld flips a binding offline once no remaining
// connection holds it. Every path that detaches a connection from a
// binding funnels through here: leave, re-identify, slow-client drop.
func (s *Session) markOfflineIfUnheld(sessionID string) {
	if sessionID == "" {
		return
	}
	for _, other := range s.clients {
		if other.sessionID == sessionID {
			return // another tab still holds the binding live
		}
	}
	s.applyInternal(engine.Command{
		Type:      engine.CmdSetOnline,
		SessionID: sessionID,
		Online:    false,
	})
}

func (s *Session) handleCommand(msg FromClient) {
	c := s.clients[msg.ConnID]
	if c == nil {
		return
	}
	if c.sessionID == "" {
		s.push(msg.ConnID, c, errOutbound("identify first"))
		return
	}

	cmd := msg.Cmd
	cmd.SessionID = c.sessionID
	cmd.Now = time.Now().Unix()
	if cmd.Type == engine.CmdJoinContestant {
		cmd.PublicID = uuid.NewString()
	}

	events, newState, err := engine.Apply(s.state, cmd)
	if err != nil {
		// Rejections never mutate shared state and never broadcast.
		s.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)),
			zap.String("session", c.sessionID),
			zap.Error(err))
		s.push(msg.ConnID, c, errOutbound(err.Error()))
		return
	}

	s.commit(newState, events)
}

// applyInternal runs a server-originated command. Failures are logged,
// not surfaced: there is no caller to reject.
func (s *Session) applyInternal(cmd engine.Command) {
	cmd.Now = time.Now().Unix()
	events, newState, err := engine.Apply(s.state, cmd)
	if err != nil {
		s.log.Debug("internal command dropped",
			zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return
	}
	s.commit(newState, events)
}

// commit publishes a successor state: bump the version, broadcast the
// full snapshot, then run the side effects the events ask for.
func (s *Session) commit(newState engine.State, events []engine.Event) {
	s.state = newState
	s.version++
	s.broadcast(Outbound{Update: s.snapshot()})

	for _, e := range events {
		switch e.Type {
		case engine.EvtQuestionNeeded:
			s.qGen++
			s.fetchQuestion(s.qGen)
		case engine.EvtTimerStarted:
			s.armTimer()
		}
	}
	if s.state.TimerStart == 0 {
		s.stopTimer()
	}
	if !s.state.AwaitingQuestion {
		s.qGen++ // invalidate any in-flight fetch after reset/finish
	}
}

// fetchQuestion asks the producer off the loop goroutine and feeds the
// result back through the inbox as a normal mutation. Failures retry
// under the same generation, so a newer request always wins.
func (s *Session) fetchQuestion(gen int) {
	round := string(s.state.Status)
	go func() {
		for {
			q, err := s.source.Next(s.ctx, round)
			if err == nil {
				select {
				case s.inbox <- questionReady{gen: gen, q: q}:
				case <-s.ctx.Done():
				}
				return
			}
			s.log.Warn("question fetch failed, retrying", zap.Error(err))
			select {
			case <-time.After(questionRetryDelay):
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Session) handleQuestionReady(msg questionReady) {
	if msg.gen != s.qGen {
		return // a reset or phase change outran this fetch
	}
	q := msg.q
	s.applyInternal(engine.Command{Type: engine.CmdQuestionReady, Question: &q})
}

// armTimer starts the server-side answer watchdog. The client runs its
// own countdown and self-reports with the timeout sentinel, but only
// this timer is authoritative.
func (s *Session) armTimer() {
	s.stopTimer()
	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(s.answerTimeout, func() {
		select {
		case s.inbox <- timerFired{gen: gen}:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) handleTimerFired(msg timerFired) {
	if msg.gen != s.timerGen || s.state.TimerStart == 0 || s.state.ActivePlayerID == "" {
		return // stale fire from an earlier turn
	}
	s.log.Info("answer timeout",
		zap.String("session", s.state.ActivePlayerID))
	s.applyInternal(engine.Command{
		Type:      engine.CmdSubmitAnswer,
		SessionID: s.state.ActivePlayerID,
		Answer:    engine.TimeoutAnswer,
	})
}

// push sends to one client, dropping it the same way broadcast does if
// its outbox is full.
func (s *Session) push(connID string, c *client, out Outbound) {
	select {
	case c.outbox <- out:
	default:
		close(c.outbox)
		delete(s.clients, connID)
		s.markOfflineIfUnheld(c.sessionID)
	}
}

func (s *Session) broadcast(out Outbound) {
	var dropped []string
	for id, c := range s.clients {
		select {
		case c.outbox <- out:
		default:
			// Client is slow/full - drop them. The offline bookkeeping
			// waits until the loop ends: it commits and re-broadcasts.
			close(c.outbox)
			delete(s.clients, id)
			dropped = append(dropped, c.sessionID)
		}
	}
	for _, sid := range dropped {
		s.markOfflineIfUnheld(sid)
	}
}

func (s *Session) shutdown() {
	s.stopTimer()
	for id, c := range s.clients {
		close(c.outbox)
		delete(s.clients, id)
	}
	s.cancel()
}

func errOutbound(msg string) Outbound {
	return Outbound{Error: &types.ErrorMessage{Type: types.MsgError, Message: msg}}
}

func (s *Session) snapshot() *types.StateUpdate {
	return Render(s.version, s.state)
}

// Render builds the wire-level full-state update for a committed state.
// Snapshots are value copies: immutable once published.
func Render(version int, st engine.State) *types.StateUpdate {
	u := &types.StateUpdate{
		Type:            types.MsgStateUpdate,
		Version:         version,
		HasPresenter:    st.PresenterID != "",
		PresenterOnline: st.PresenterOnline,
		Contestants:     make([]types.Contestant, 0, len(st.Order)),
		Status:          string(st.Status),
		Round:           engine.SubPhase(st),
		DecisionPending: st.DecisionPending,
	}
	for _, id := range st.Order {
		ct := st.Contestants[id]
		u.Contestants = append(u.Contestants, types.Contestant{
			ID:              ct.ID,
			SessionID:       ct.SessionID,
			Name:            ct.Name,
			Age:             ct.Age,
			Score:           ct.Score,
			Lives:           ct.Lives,
			Ready:           ct.Ready,
			Online:          ct.Online,
			Eliminated:      ct.Eliminated,
			Round1Misses:    ct.Round1Misses,
			Round1Questions: ct.Round1Questions,
		})
	}
	if st.ActivePlayerID != "" {
		id := st.ActivePlayerID
		u.ActivePlayerID = &id
	}
	if st.CurrentQuestion != nil {
		u.CurrentQuestion = &types.Question{Text: st.CurrentQuestion.Text}
	}
	if st.TimerStart != 0 {
		ts := st.TimerStart
		u.TimerStart = &ts
	}
	return u
}
