package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/internal/relay"
	"github.com/isumenuka/hangman-sub000/internal/ws"
)

func SetupRoutes(dir *relay.Directory, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/rooms/{code}", RoomProbe(dir))
	r.Get("/ws", ws.Handler(dir, log))
	return r
}
