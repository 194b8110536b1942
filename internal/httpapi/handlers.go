package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/isumenuka/hangman-sub000/internal/relay"
)

const probeTimeout = time.Second

// RoomProbe lets a guest UI validate a room code before joining. It only
// reports existence; room codes themselves are generated host-side.
func RoomProbe(dir *relay.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan *relay.Room, 1)
		dir.Inbox() <- relay.GetRoom{Code: code, Reply: reply}
		room := <-reply
		if room == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		// The room can die between the lookup and this read (last member
		// leaving wins the race); never hang on its dead loop.
		view := make(chan relay.View, 1)
		var v relay.View
		select {
		case room.Inbox() <- relay.GetView{Reply: view}:
		case <-time.After(probeTimeout):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		select {
		case v = <-view:
		case <-time.After(probeTimeout):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Code    string `json:"code"`
			Members int    `json:"members"`
		}{Code: v.Code, Members: v.NumMembers})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
