package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/one-of-fifteen/backend/internal/registry"
	"github.com/one-of-fifteen/backend/internal/ws"
)

func SetupRoutes(reg *registry.Registry, defaultGame string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/games", CreateGame(reg))
	r.Get("/games/{gameID}/state", GameState(reg))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(reg, defaultGame, log))
	return r
}
