package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/one-of-fifteen/backend/internal/registry"
	"github.com/one-of-fifteen/backend/internal/session"
)

// gameIDAlphabet is lowercase and skips l, o, 0 and 1: game ids end up
// in URLs and chat messages, so every character must read unambiguously.
const gameIDAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"

const gameIDLength = 8

// NewGameID mints a random id like "qk7v2mhe".
func NewGameID() (string, error) {
	buf := make([]byte, gameIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// 32 characters divide 256 evenly, so masking stays uniform.
	for i, b := range buf {
		buf[i] = gameIDAlphabet[b&31]
	}
	return string(buf), nil
}

// CreateGame mints a fresh game id and spins up its session. The
// default deployment runs one fixed game, but nothing stops more.
func CreateGame(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := NewGameID()
			if err != nil {
				http.Error(w, "failed to generate game id", http.StatusInternalServerError)
				return
			}
			if reg.Get(c) == nil {
				code = c
				break
			}
		}

		if reg.Ensure(code) == nil {
			http.Error(w, "failed to create game", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			GameID string `json:"game_id"`
		}{GameID: code})
	}
}

// GameState serves the current snapshot over plain HTTP, read-only.
func GameState(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := reg.Get(chi.URLParam(r, "gameID"))
		if sess == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		reply := make(chan session.View, 1)
		sess.Inbox() <- session.GetState{Reply: reply}
		select {
		case view := <-reply:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(session.Render(view.Version, view.State))
		case <-time.After(3 * time.Second):
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
