package relay

import (
	"context"

	"go.uber.org/zap"
)

type DirMsg interface{ isDirMsg() }

type EnsureRoom struct {
	Code  string
	Reply chan *Room
}

type GetRoom struct {
	Code  string
	Reply chan *Room // nil when the room does not exist
}

type RemoveRoom struct {
	Code string
}

type ShutdownDirectory struct{}

func (EnsureRoom) isDirMsg()        {}
func (GetRoom) isDirMsg()           {}
func (RemoveRoom) isDirMsg()        {}
func (ShutdownDirectory) isDirMsg() {}

// Directory is the process-wide room index, an actor owning the code→room
// map. Rooms report back through the cleanup channel once their last
// member disconnects.
type Directory struct {
	inbox   chan DirMsg
	rooms   map[string]*Room
	cleanup chan string
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
}

func NewDirectory(parent context.Context, log *zap.Logger) *Directory {
	ctx, cancel := context.WithCancel(parent)
	d := &Directory{
		inbox:   make(chan DirMsg, 64),
		rooms:   make(map[string]*Room),
		cleanup: make(chan string, 64),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
	go d.loop()
	return d
}

func (d *Directory) Inbox() chan<- DirMsg { return d.inbox }

func (d *Directory) loop() {
	for {
		select {
		case <-d.ctx.Done():
			return

		case code := <-d.cleanup:
			delete(d.rooms, code)
			d.log.Info("room expired", zap.String("room", code))

		case m := <-d.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if room := d.rooms[msg.Code]; room != nil {
					msg.Reply <- room
					break
				}
				room := NewRoom(d.ctx, msg.Code, d.cleanup, d.log)
				d.rooms[msg.Code] = room
				d.log.Info("room opened", zap.String("room", msg.Code))
				msg.Reply <- room

			case GetRoom:
				msg.Reply <- d.rooms[msg.Code]

			case RemoveRoom:
				delete(d.rooms, msg.Code)

			case ShutdownDirectory:
				for _, room := range d.rooms {
					room.Inbox() <- Shutdown{}
				}
				clear(d.rooms)
				d.cancel()
			}
		}
	}
}
