package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/internal/game"
	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

var ErrSessionOver = errors.New("session is over")

type guestMsg interface{ isGuestMsg() }

type guestFromRelay struct{ action protocol.Action }
type guestRelayClosed struct{}
type guestGuess struct {
	letter string
	reply  chan error
}
type guestCast struct {
	spellID  string
	targetID string
	reply    chan error
}
type guestSpectate struct {
	targetID string
	reply    chan error
}
type guestGetView struct{ reply chan GuestView }
type guestShutdown struct{}

func (guestFromRelay) isGuestMsg()   {}
func (guestRelayClosed) isGuestMsg() {}
func (guestGuess) isGuestMsg()       {}
func (guestCast) isGuestMsg()        {}
func (guestSpectate) isGuestMsg()    {}
func (guestGetView) isGuestMsg()     {}
func (guestShutdown) isGuestMsg()    {}

// GuestView is a read of the guest's replica: the latest roster broadcast
// plus local round progress.
type GuestView struct {
	Roster   []protocol.Participant
	Round    int
	Masked   string
	HostLost bool
}

// Guest holds a read-only replica of the roster, replaced wholesale on
// every PLAYER_UPDATE/GLOBAL_TICK. All intents (join, status, spells) are
// requests arbitrated by the host; the guest never merges partial state.
type Guest struct {
	inbox chan guestMsg
	conn  Conn
	name  string

	roster       []protocol.Participant
	hostID       string
	round        *game.Round
	roundNum     int
	mistakeLimit int
	timeBank     int64
	caster       *game.Caster
	hostLost     bool

	snapshots chan []protocol.Participant
	notices   chan Notice

	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// JoinLobby starts a guest session on an already-dialed connection and
// emits the JOIN_REQUEST. Admission shows up as the next PLAYER_UPDATE.
func JoinLobby(parent context.Context, conn Conn, name string, log *zap.Logger) (*Guest, error) {
	ctx, cancel := context.WithCancel(parent)
	g := &Guest{
		inbox:     make(chan guestMsg, 64),
		conn:      conn,
		name:      name,
		caster:    game.NewCaster(startingPoints),
		snapshots: make(chan []protocol.Participant, sessionChanDepth),
		notices:   make(chan Notice, sessionChanDepth),
		ctx:       ctx,
		cancel:    cancel,
		log:       log.With(zap.String("room", conn.RoomCode()), zap.String("role", "guest")),
	}
	if err := conn.Emit(ctx, protocol.NewAction(protocol.JoinRequest, protocol.JoinRequestPayload{
		Name:     name,
		SenderID: conn.ID(),
	})); err != nil {
		cancel()
		return nil, err
	}
	go g.relayPump()
	go g.loop()
	return g, nil
}

func (g *Guest) Snapshots() <-chan []protocol.Participant { return g.snapshots }

func (g *Guest) Notices() <-chan Notice { return g.notices }

// Guess plays one letter locally, then reports the resulting round state
// to the host for arbitration and rebroadcast.
func (g *Guest) Guess(ctx context.Context, letter string) error {
	reply := make(chan error, 1)
	if err := g.send(ctx, guestGuess{letter: letter, reply: reply}); err != nil {
		return err
	}
	return g.await(ctx, reply)
}

func (g *Guest) CastSpell(ctx context.Context, spellID, targetID string) error {
	reply := make(chan error, 1)
	if err := g.send(ctx, guestCast{spellID: spellID, targetID: targetID, reply: reply}); err != nil {
		return err
	}
	return g.await(ctx, reply)
}

// Spectate switches this participant to watching another one after their
// own round resolved.
func (g *Guest) Spectate(ctx context.Context, targetID string) error {
	reply := make(chan error, 1)
	if err := g.send(ctx, guestSpectate{targetID: targetID, reply: reply}); err != nil {
		return err
	}
	return g.await(ctx, reply)
}

func (g *Guest) View(ctx context.Context) (GuestView, error) {
	reply := make(chan GuestView, 1)
	if err := g.send(ctx, guestGetView{reply: reply}); err != nil {
		return GuestView{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return GuestView{}, ctx.Err()
	}
}

func (g *Guest) Close() {
	select {
	case g.inbox <- guestShutdown{}:
	case <-g.ctx.Done():
	}
}

func (g *Guest) send(ctx context.Context, msg guestMsg) error {
	select {
	case g.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.ctx.Done():
		return g.ctx.Err()
	}
}

func (g *Guest) await(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-g.ctx.Done():
		return g.ctx.Err()
	}
}

func (g *Guest) relayPump() {
	for action := range g.conn.Inbox() {
		select {
		case g.inbox <- guestFromRelay{action: action}:
		case <-g.ctx.Done():
			return
		}
	}
	select {
	case g.inbox <- guestRelayClosed{}:
	case <-g.ctx.Done():
	}
}

func (g *Guest) loop() {
	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case m := <-g.inbox:
			switch msg := m.(type) {
			case guestFromRelay:
				if done := g.dispatch(msg.action); done {
					g.shutdown()
					return
				}

			case guestRelayClosed:
				g.notify(Notice{Kind: NoticeDisconnected})
				g.shutdown()
				return

			case guestGuess:
				msg.reply <- g.guessLocal(msg.letter)

			case guestCast:
				msg.reply <- g.castLocal(msg.spellID, msg.targetID)

			case guestSpectate:
				msg.reply <- g.spectateLocal(msg.targetID)

			case guestGetView:
				view := GuestView{
					Roster:   g.roster,
					Round:    g.roundNum,
					HostLost: g.hostLost,
				}
				if g.round != nil {
					view.Masked = g.round.Masked()
				}
				msg.reply <- view

			case guestShutdown:
				g.shutdown()
				return
			}
		}
	}
}

func (g *Guest) shutdown() {
	g.cancel()
	close(g.snapshots)
	close(g.notices)
	_ = g.conn.Close()
}

// dispatch handles one broadcast. Returns true when the session reached a
// terminal state (host loss).
func (g *Guest) dispatch(action protocol.Action) bool {
	switch action.Type {
	case protocol.PlayerUpdate, protocol.GlobalTick:
		var payload protocol.RosterPayload
		if err := action.Decode(&payload); err != nil {
			g.log.Debug("bad roster broadcast", zap.Error(err))
			return false
		}
		// Wholesale replace; never patch the replica in place. The host
		// id is remembered separately so a later PLAYER_LEFT is still
		// recognized if the replica has shrunk past it.
		g.roster = payload.Roster
		for _, p := range payload.Roster {
			if p.IsHost {
				g.hostID = p.ID
			}
		}
		g.pushSnapshot()

	case protocol.GameStart:
		var start protocol.GameStartPayload
		if err := action.Decode(&start); err != nil {
			g.log.Debug("bad game start", zap.Error(err))
			return false
		}
		g.roundNum = start.Round
		g.mistakeLimit = start.MistakeLimit
		// Bank the resolved round so totalTime keeps accumulating.
		if g.round != nil && g.round.Finished() {
			g.timeBank += g.round.ElapsedMS()
		}
		g.round = game.NewRound(start.Payload.Word, start.MistakeLimit)
		g.notify(Notice{Kind: NoticeRoundStarted, Round: start.Round})

	case protocol.RoundCountdown:
		var countdown protocol.CountdownPayload
		if err := action.Decode(&countdown); err != nil {
			return false
		}
		g.notify(Notice{Kind: NoticeCountdown, Count: countdown.Count})

	case protocol.CastSpell:
		var spell protocol.CastSpellPayload
		if err := action.Decode(&spell); err != nil {
			return false
		}
		kind := NoticeSpellLogged
		if spell.TargetID == g.conn.ID() {
			kind = NoticeSpellIncoming
		}
		g.notify(Notice{Kind: kind, Spell: spell})

	case protocol.PlayerLeft:
		var left protocol.PlayerLeftPayload
		if err := action.Decode(&left); err != nil {
			return false
		}
		if g.hostID != "" && left.ID == g.hostID {
			// No host migration: the session cannot be recovered.
			g.hostLost = true
			g.notify(Notice{Kind: NoticeHostLost})
			return true
		}
		// A departing guest's removal arrives via the host's next
		// roster broadcast. A PLAYER_LEFT racing ahead of the first
		// roster broadcast cannot be attributed and is dropped.

	case protocol.JoinRequest, protocol.UpdateMyStatus:
		// Host-only concerns; other guests' requests are not ours.

	default:
	}
	return false
}

func (g *Guest) guessLocal(letter string) error {
	if g.hostLost {
		return ErrSessionOver
	}
	if g.round == nil {
		return ErrNoActiveRound
	}
	correct, err := g.round.Guess(letter)
	if err != nil {
		return err
	}
	if correct {
		g.caster.Earn(1)
	}
	return g.conn.Emit(g.ctx, protocol.NewAction(protocol.UpdateMyStatus, withTimeBank(g.round.StatusPatch(g.conn.ID()), g.timeBank)))
}

func (g *Guest) castLocal(spellID, targetID string) error {
	if g.hostLost {
		return ErrSessionOver
	}
	if _, err := g.caster.Cast(spellID); err != nil {
		return err
	}
	return g.conn.Emit(g.ctx, protocol.NewAction(protocol.CastSpell, protocol.CastSpellPayload{
		SpellID:    spellID,
		CasterName: g.name,
		TargetID:   targetID,
	}))
}

func (g *Guest) spectateLocal(targetID string) error {
	if g.hostLost {
		return ErrSessionOver
	}
	if g.round == nil || !g.round.Finished() {
		return errors.New("can only spectate after finishing the round")
	}
	patch := withTimeBank(g.round.StatusPatch(g.conn.ID()), g.timeBank)
	patch.Status = protocol.StatusSpectating
	patch.SpectatingID = targetID
	return g.conn.Emit(g.ctx, protocol.NewAction(protocol.UpdateMyStatus, patch))
}

func (g *Guest) pushSnapshot() {
	select {
	case g.snapshots <- g.roster:
	default:
	}
}

func (g *Guest) notify(n Notice) {
	select {
	case g.notices <- n:
	default:
	}
}
