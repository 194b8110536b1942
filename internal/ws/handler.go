// Package ws bridges websocket connections and room actors on the relay.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/internal/relay"
	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the connection and pumps envelopes between the socket
// and the target room. Query params: code (required), create ("true" for
// the host opening the room; guests get 404 on a missing room).
func Handler(dir *relay.Directory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *relay.Room, 1)
		if r.URL.Query().Get("create") == "true" {
			dir.Inbox() <- relay.EnsureRoom{Code: code, Reply: reply}
		} else {
			dir.Inbox() <- relay.GetRoom{Code: code, Reply: reply}
		}
		room := <-reply
		if room == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		memberID := uuid.NewString()
		out := make(chan []byte, 32)

		room.Inbox() <- relay.Join{ID: memberID, Outbox: out}
		defer func() { room.Inbox() <- relay.Leave{ID: memberID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for data := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, data)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Clean close or drop, either way the deferred Leave
				// triggers the synthetic PLAYER_LEFT.
				return
			}

			env, err := protocol.ParseEnvelope(data)
			if err != nil {
				log.Debug("dropping malformed envelope", zap.String("member", memberID), zap.Error(err))
				continue
			}
			if env.RoomCode != code {
				log.Debug("dropping cross-room envelope",
					zap.String("member", memberID),
					zap.String("claimed", env.RoomCode))
				continue
			}

			room.Inbox() <- relay.Forward{From: memberID, Data: data}
		}
	}
}
