package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/one-of-fifteen/backend/internal/engine"
	"github.com/one-of-fifteen/backend/internal/registry"
	"github.com/one-of-fifteen/backend/internal/session"
	"github.com/one-of-fifteen/backend/pkg/types"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 3 * time.Second
)

var errEmptyOutbound = errors.New("empty outbound message")

// Handler upgrades to a websocket and bridges the connection to its
// game session. The session is created lazily on first connection.
func Handler(reg *registry.Registry, defaultGame string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		game := r.URL.Query().Get("game")
		if game == "" {
			game = defaultGame
		}
		sess := reg.Ensure(game)

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Outbound, 8)
		connID := uuid.NewString()
		log.Debug("client connected", zap.String("game", game), zap.String("conn", connID))

		sess.Inbox() <- session.Join{ConnID: connID, Outbox: out}
		defer func() { sess.Inbox() <- session.Leave{ConnID: connID} }()

		// Writer goroutine: drains the outbox until the session closes
		// it (leave, slow-client drop, or shutdown).
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := encodeOutbound(msg)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop.
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Anything else still means the connection is gone; the
				// deferred Leave flips the session offline.
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","message":"bad json"}`))
				continue
			}

			switch cm.Type {
			case types.MsgIdentify:
				sess.Inbox() <- session.Identify{ConnID: connID, SessionID: cm.SessionID}
			case types.MsgGetState:
				sess.Inbox() <- session.PollState{ConnID: connID}
			default:
				cmd, ok := toCommand(cm)
				if !ok {
					_ = conn.Write(r.Context(), websocket.MessageText,
						[]byte(`{"type":"error","message":"unknown type"}`))
					continue
				}
				sess.Inbox() <- session.FromClient{ConnID: connID, Cmd: cmd}
			}
		}
	}
}

func encodeOutbound(msg session.Outbound) ([]byte, error) {
	switch {
	case msg.Welcome != nil:
		return json.Marshal(msg.Welcome)
	case msg.Update != nil:
		return json.Marshal(msg.Update)
	case msg.Error != nil:
		return json.Marshal(msg.Error)
	}
	return nil, errEmptyOutbound
}

func toCommand(m types.ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case types.MsgJoinPresenter:
		return engine.Command{Type: engine.CmdJoinPresenter}, true
	case types.MsgJoinContestant:
		return engine.Command{Type: engine.CmdJoinContestant, Name: m.Name, Age: m.Age}, true
	case types.MsgToggleReady:
		return engine.Command{Type: engine.CmdToggleReady}, true
	case types.MsgStartGame:
		return engine.Command{Type: engine.CmdStartGame}, true
	case types.MsgResetGame:
		return engine.Command{Type: engine.CmdResetGame}, true
	case types.MsgPointToPlayer:
		return engine.Command{Type: engine.CmdPointToPlayer, TargetID: m.TargetID}, true
	case types.MsgBuzzIn:
		return engine.Command{Type: engine.CmdBuzzIn}, true
	case types.MsgMakeDecision:
		return engine.Command{Type: engine.CmdMakeDecision, Choice: m.Choice, TargetID: m.TargetID}, true
	case types.MsgSubmitAnswer:
		return engine.Command{Type: engine.CmdSubmitAnswer, Answer: m.Answer}, true
	default:
		return engine.Command{}, false
	}
}
