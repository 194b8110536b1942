// Package relay implements the thin forwarding server: a directory of
// rooms and, per room, a fan-out loop for opaque action envelopes. The
// relay owns no game state; its only protocol knowledge is assigning
// transport ids on join and synthesizing PLAYER_LEFT on departure.
package relay

import (
	"context"

	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

type RoomMsg interface{ isRoomMsg() }

type Join struct {
	ID     string
	Outbox chan []byte // where this member receives forwarded envelopes
}

type Leave struct{ ID string }

type Forward struct {
	From string
	Data []byte
}

type GetView struct {
	Reply chan View
}

type Shutdown struct{}

func (Join) isRoomMsg()     {}
func (Leave) isRoomMsg()    {}
func (Forward) isRoomMsg()  {}
func (GetView) isRoomMsg()  {}
func (Shutdown) isRoomMsg() {}

// View is a test/diagnostic read of room internals without data races.
type View struct {
	Code       string
	NumMembers int
}

type Room struct {
	code    string
	inbox   chan RoomMsg
	members map[string]chan []byte
	cleanup chan<- string
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
}

func NewRoom(parent context.Context, code string, cleanup chan<- string, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:    code,
		inbox:   make(chan RoomMsg, 64),
		members: make(map[string]chan []byte),
		cleanup: cleanup,
		ctx:     ctx,
		cancel:  cancel,
		log:     log.With(zap.String("room", code)),
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- RoomMsg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.members[msg.ID] = msg.Outbox
				// Tell the new member its transport id before anything
				// else reaches it.
				if data, err := protocol.EncodeEnvelope(protocol.Envelope{
					RoomCode: r.code,
					Action:   protocol.NewAction(protocol.Welcome, protocol.WelcomePayload{ID: msg.ID}),
				}); err == nil {
					msg.Outbox <- data
				}
				r.log.Info("member joined", zap.String("id", msg.ID), zap.Int("members", len(r.members)))

			case Leave:
				if _, ok := r.members[msg.ID]; !ok {
					break
				}
				delete(r.members, msg.ID)
				r.log.Info("member left", zap.String("id", msg.ID), zap.Int("members", len(r.members)))
				// Departure is relay-detected; members learn about it via
				// a synthetic PLAYER_LEFT.
				r.broadcast(leftFrame(r.code, msg.ID))
				if r.emptied() {
					return
				}

			case Forward:
				// Verbatim fan-out to every member, sender included.
				r.broadcast(msg.Data)
				if r.emptied() {
					return
				}

			case GetView:
				msg.Reply <- View{Code: r.code, NumMembers: len(r.members)}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.members {
		close(ch)
		delete(r.members, id)
	}
	r.cancel()
}

// broadcast delivers one frame to every member. A member that cannot take
// the frame is dropped and departs like anyone else: the survivors get a
// synthetic PLAYER_LEFT for it, which may cascade further drops.
func (r *Room) broadcast(data []byte) {
	queue := [][]byte{data}
	for len(queue) > 0 {
		frame := queue[0]
		queue = queue[1:]
		for id, ch := range r.members {
			select {
			case ch <- frame:
			default:
				// Slow or stuck member: drop it rather than stall the room.
				close(ch)
				delete(r.members, id)
				r.log.Warn("dropped slow member", zap.String("id", id))
				queue = append(queue, leftFrame(r.code, id))
			}
		}
	}
}

// emptied reports the room's code to the directory and shuts the loop
// down once the last member is gone, however it left.
func (r *Room) emptied() bool {
	if len(r.members) > 0 {
		return false
	}
	r.cleanup <- r.code
	r.shutdown()
	return true
}

func leftFrame(code, id string) []byte {
	data, err := protocol.EncodeEnvelope(protocol.Envelope{
		RoomCode: code,
		Action:   protocol.NewAction(protocol.PlayerLeft, protocol.PlayerLeftPayload{ID: id}),
	})
	if err != nil {
		// Envelope of plain strings; cannot fail.
		panic(err)
	}
	return data
}
