package session

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/internal/bot"
	"github.com/isumenuka/hangman-sub000/internal/engine"
	"github.com/isumenuka/hangman-sub000/internal/game"
	"github.com/isumenuka/hangman-sub000/internal/stats"
	"github.com/isumenuka/hangman-sub000/internal/words"
	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

var ErrNoActiveRound = errors.New("no active round")
var ErrStartPending = errors.New("round start already pending")

const (
	botTickEvery     = 2 * time.Second
	startingPoints   = 5
	sessionChanDepth = 16
)

type hostMsg interface{ isHostMsg() }

type fromRelay struct{ action protocol.Action }
type relayClosed struct{}
type startRound struct{ reply chan error }
type roundReady struct {
	payload protocol.RoundPayload
	reply   chan error
}
type roundFailed struct {
	err   error
	reply chan error
}
type countdownFire struct{ gen int }
type botTick struct{}
type hostGuess struct {
	letter string
	reply  chan error
}
type hostCast struct {
	spellID  string
	targetID string
	reply    chan error
}
type addBot struct{ name string }
type announce struct{}
type getState struct{ reply chan engine.State }
type hostShutdown struct{}

func (fromRelay) isHostMsg()     {}
func (relayClosed) isHostMsg()   {}
func (startRound) isHostMsg()    {}
func (roundReady) isHostMsg()    {}
func (roundFailed) isHostMsg()   {}
func (countdownFire) isHostMsg() {}
func (botTick) isHostMsg()       {}
func (hostGuess) isHostMsg()     {}
func (hostCast) isHostMsg()      {}
func (addBot) isHostMsg()        {}
func (announce) isHostMsg()      {}
func (getState) isHostMsg()      {}
func (hostShutdown) isHostMsg()  {}

// HostDeps are the external collaborators a host session consumes.
type HostDeps struct {
	Rounds     words.RoundSource
	Brain      bot.Brain
	Stats      stats.Sink
	Difficulty string
	Log        *zap.Logger
}

// Host is the authoritative session: the only writer of the canonical
// roster. Incoming guest envelopes and local calls funnel through one
// actor loop that applies engine commands and rebroadcasts full state.
type Host struct {
	inbox chan hostMsg
	conn  Conn
	name  string
	deps  HostDeps

	state        engine.State
	caster       *game.Caster
	myRound      *game.Round
	botRounds    map[string]*game.Round
	timeBank     int64
	botBanks     map[string]int64
	usedWords    []string
	countdownGen int
	fetching     bool

	snapshots chan engine.State
	notices   chan Notice

	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// NewHost seeds the canonical roster with the host itself in LOBBY and
// starts the actor loop. conn must already be joined to the room the
// host created.
func NewHost(parent context.Context, conn Conn, name string, rules engine.Rules, deps HostDeps) *Host {
	ctx, cancel := context.WithCancel(parent)
	h := &Host{
		inbox:     make(chan hostMsg, 64),
		conn:      conn,
		name:      name,
		deps:      deps,
		state:     engine.NewLobbyState(conn.ID(), name, rules),
		caster:    game.NewCaster(startingPoints),
		botRounds: make(map[string]*game.Round),
		botBanks:  make(map[string]int64),
		snapshots: make(chan engine.State, sessionChanDepth),
		notices:   make(chan Notice, sessionChanDepth),
		ctx:       ctx,
		cancel:    cancel,
		log:       deps.Log.With(zap.String("room", conn.RoomCode()), zap.String("role", "host")),
	}
	go h.relayPump()
	go h.botTicker()
	go h.loop()
	// Symmetry with guests: the lobby broadcast includes the host itself.
	h.inbox <- announce{}
	return h
}

func (h *Host) Snapshots() <-chan engine.State { return h.snapshots }

func (h *Host) Notices() <-chan Notice { return h.notices }

// StartRound asks the content provider for a round payload and, on
// success, broadcasts GAME_START. On provider failure the session stays
// in its pre-round state and the error is returned.
func (h *Host) StartRound(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := h.send(ctx, startRound{reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// Guess plays one letter for the host's own participant.
func (h *Host) Guess(ctx context.Context, letter string) error {
	reply := make(chan error, 1)
	if err := h.send(ctx, hostGuess{letter: letter, reply: reply}); err != nil {
		return err
	}
	return h.await(ctx, reply)
}

// CastSpell checks cost and cooldown locally, then emits CAST_SPELL for
// fan-out. Only the target applies the effect.
func (h *Host) CastSpell(ctx context.Context, spellID, targetID string) error {
	reply := make(chan error, 1)
	if err := h.send(ctx, hostCast{spellID: spellID, targetID: targetID, reply: reply}); err != nil {
		return err
	}
	return h.await(ctx, reply)
}

// AddBot admits a synthetic participant. Bots never touch the wire as
// senders; their actions are injected by this process.
func (h *Host) AddBot(ctx context.Context, name string) error {
	return h.send(ctx, addBot{name: name})
}

// State returns a copy of the canonical state without racing the loop.
func (h *Host) State(ctx context.Context) (engine.State, error) {
	reply := make(chan engine.State, 1)
	if err := h.send(ctx, getState{reply: reply}); err != nil {
		return engine.State{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return engine.State{}, ctx.Err()
	}
}

func (h *Host) Close() {
	select {
	case h.inbox <- hostShutdown{}:
	case <-h.ctx.Done():
	}
}

func (h *Host) send(ctx context.Context, msg hostMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

func (h *Host) await(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

func (h *Host) relayPump() {
	for action := range h.conn.Inbox() {
		select {
		case h.inbox <- fromRelay{action: action}:
		case <-h.ctx.Done():
			return
		}
	}
	select {
	case h.inbox <- relayClosed{}:
	case <-h.ctx.Done():
	}
}

func (h *Host) botTicker() {
	ticker := time.NewTicker(botTickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			select {
			case h.inbox <- botTick{}:
			case <-h.ctx.Done():
				return
			}
		}
	}
}

func (h *Host) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case fromRelay:
				h.dispatch(msg.action)

			case relayClosed:
				h.notify(Notice{Kind: NoticeDisconnected})
				h.shutdown()
				return

			case startRound:
				h.beginRoundFetch(msg.reply)

			case roundReady:
				h.fetching = false
				h.applyStartRound(msg.payload, msg.reply)

			case roundFailed:
				h.fetching = false
				h.log.Warn("round start aborted", zap.Error(msg.err))
				h.notify(Notice{Kind: NoticeRoundStartFailed, Err: msg.err})
				if msg.reply != nil {
					msg.reply <- msg.err
				}

			case countdownFire:
				if msg.gen != h.countdownGen {
					break // stale timer from a cancelled countdown
				}
				h.applyCmd(engine.Command{Type: engine.CmdCountdownTick})

			case botTick:
				h.runBotTurn()

			case hostGuess:
				msg.reply <- h.guessLocal(msg.letter)

			case hostCast:
				msg.reply <- h.castLocal(msg.spellID, msg.targetID)

			case addBot:
				h.applyCmd(engine.Command{
					Type:     engine.CmdAdmitJoin,
					Name:     msg.name,
					SenderID: "bot-" + uuid.NewString()[:8],
					IsBot:    true,
				})

			case announce:
				h.broadcastRoster()
				h.pushSnapshot()

			case getState:
				msg.reply <- h.state

			case hostShutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Host) shutdown() {
	h.cancel()
	close(h.snapshots)
	close(h.notices)
	_ = h.conn.Close()
}

// dispatch handles one envelope from the relay. Roster-bearing broadcasts
// are the host's own echoes and are skipped; guest intents go through the
// engine.
func (h *Host) dispatch(action protocol.Action) {
	switch action.Type {
	case protocol.JoinRequest:
		var join protocol.JoinRequestPayload
		if err := action.Decode(&join); err != nil {
			h.log.Debug("bad join request", zap.Error(err))
			return
		}
		h.applyCmd(engine.Command{Type: engine.CmdAdmitJoin, Name: join.Name, SenderID: join.SenderID})

	case protocol.UpdateMyStatus:
		var patch protocol.StatusUpdatePayload
		if err := action.Decode(&patch); err != nil {
			h.log.Debug("bad status update", zap.Error(err))
			return
		}
		h.applyCmd(engine.Command{Type: engine.CmdPatchStatus, Patch: patch})

	case protocol.PlayerLeft:
		var left protocol.PlayerLeftPayload
		if err := action.Decode(&left); err != nil {
			return
		}
		if left.ID == h.conn.ID() {
			return
		}
		h.applyCmd(engine.Command{Type: engine.CmdRemoveParticipant, SenderID: left.ID})

	case protocol.CastSpell:
		var spell protocol.CastSpellPayload
		if err := action.Decode(&spell); err != nil {
			return
		}
		kind := NoticeSpellLogged
		if spell.TargetID == h.conn.ID() {
			kind = NoticeSpellIncoming
		}
		h.notify(Notice{Kind: kind, Spell: spell})

	case protocol.PlayerUpdate, protocol.GlobalTick, protocol.GameStart, protocol.RoundCountdown:
		// Own broadcasts echoed back by the relay.

	default:
	}
}

func (h *Host) applyCmd(cmd engine.Command) {
	events, next, err := engine.Apply(h.state, cmd)
	if err != nil {
		h.log.Warn("command rejected", zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return
	}
	h.state = next
	h.handleEvents(events)
}

func (h *Host) beginRoundFetch(reply chan error) {
	if h.fetching {
		if reply != nil {
			reply <- ErrStartPending
		}
		return
	}
	if h.state.Phase == engine.PhaseTournamentOver || h.state.Round >= h.state.Rules.MaxRounds {
		if reply != nil {
			reply <- engine.ErrTournamentOver
		}
		return
	}
	h.fetching = true
	exclude := append([]string(nil), h.usedWords...)
	go func() {
		payload, err := h.deps.Rounds.GenerateRound(h.ctx, exclude, h.deps.Difficulty)
		var msg hostMsg
		if err != nil {
			msg = roundFailed{err: err, reply: reply}
		} else {
			msg = roundReady{payload: payload, reply: reply}
		}
		select {
		case h.inbox <- msg:
		case <-h.ctx.Done():
		}
	}()
}

func (h *Host) applyStartRound(payload protocol.RoundPayload, reply chan error) {
	events, next, err := engine.Apply(h.state, engine.Command{Type: engine.CmdStartRound, Round: payload})
	if err != nil {
		if reply != nil {
			reply <- err
		}
		return
	}
	h.state = next
	h.handleEvents(events)
	if reply != nil {
		reply <- nil
	}
}

func (h *Host) handleEvents(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtRosterChanged:
			h.broadcastRoster()
			h.pushSnapshot()

		case engine.EvtRoundStarted:
			h.usedWords = append(h.usedWords, ev.Payload.Word)
			h.emit(protocol.NewAction(protocol.GameStart, protocol.GameStartPayload{
				Round:        ev.Round,
				MistakeLimit: h.state.Rules.MistakeLimit,
				Payload:      ev.Payload,
			}))
			// Bank resolved rounds before their state is replaced:
			// totalTime accumulates across the whole tournament.
			if h.myRound != nil && h.myRound.Finished() {
				h.timeBank += h.myRound.ElapsedMS()
			}
			for id, r := range h.botRounds {
				if r.Finished() {
					h.botBanks[id] += r.ElapsedMS()
				}
			}
			h.myRound = game.NewRound(ev.Payload.Word, h.state.Rules.MistakeLimit)
			h.botRounds = make(map[string]*game.Round)
			for _, p := range h.state.Roster {
				if p.IsBot {
					h.botRounds[p.ID] = game.NewRound(ev.Payload.Word, h.state.Rules.MistakeLimit)
				}
			}
			h.notify(Notice{Kind: NoticeRoundStarted, Round: ev.Round})

		case engine.EvtCountdownStarted, engine.EvtCountdownTicked:
			count := ev.Count
			h.emit(protocol.NewAction(protocol.RoundCountdown, protocol.CountdownPayload{Count: &count}))
			h.notify(Notice{Kind: NoticeCountdown, Count: &count})
			h.scheduleCountdownFire()

		case engine.EvtCountdownCleared:
			h.countdownGen++ // orphan any pending fire
			h.emit(protocol.NewAction(protocol.RoundCountdown, protocol.CountdownPayload{}))
			h.notify(Notice{Kind: NoticeCountdown})

		case engine.EvtCountdownExpired:
			h.countdownGen++
			h.emit(protocol.NewAction(protocol.RoundCountdown, protocol.CountdownPayload{}))
			h.beginRoundFetch(nil)

		case engine.EvtTournamentOver:
			h.notify(Notice{Kind: NoticeTournamentOver})
			h.recordOutcomes()
			h.pushSnapshot()
		}
	}
}

func (h *Host) scheduleCountdownFire() {
	h.countdownGen++
	gen := h.countdownGen
	time.AfterFunc(time.Second, func() {
		select {
		case h.inbox <- countdownFire{gen: gen}:
		case <-h.ctx.Done():
		}
	})
}

func (h *Host) runBotTurn() {
	if h.state.Phase != engine.PhasePlaying {
		return
	}
	var active []string
	for id, r := range h.botRounds {
		if !r.Finished() {
			active = append(active, id)
		}
	}
	if len(active) == 0 {
		return
	}
	id := active[rand.Intn(len(active))]
	r := h.botRounds[id]

	decision, err := h.deps.Brain.Decide(h.ctx, bot.Context{
		Masked:   r.Masked(),
		Guessed:  r.Guessed(),
		Mistakes: r.Mistakes(),
		Limit:    h.state.Rules.MistakeLimit,
	})
	if err != nil || decision.Type != bot.DecisionGuess {
		// Brain failures act as a WAIT.
		return
	}
	if _, err := r.Guess(decision.Letter); err != nil {
		return
	}
	h.applyCmd(engine.Command{Type: engine.CmdPatchStatus, Patch: withTimeBank(r.StatusPatch(id), h.botBanks[id])})
}

func (h *Host) guessLocal(letter string) error {
	if h.myRound == nil {
		return ErrNoActiveRound
	}
	correct, err := h.myRound.Guess(letter)
	if err != nil {
		return err
	}
	if correct {
		h.caster.Earn(1)
	}
	h.applyCmd(engine.Command{Type: engine.CmdPatchStatus, Patch: withTimeBank(h.myRound.StatusPatch(h.conn.ID()), h.timeBank)})
	return nil
}

// withTimeBank folds time banked from earlier rounds into a status patch,
// keeping totalTime a tournament-wide accumulator.
func withTimeBank(patch protocol.StatusUpdatePayload, bank int64) protocol.StatusUpdatePayload {
	if patch.TotalTimeMS != nil {
		total := bank + *patch.TotalTimeMS
		patch.TotalTimeMS = &total
	}
	return patch
}

func (h *Host) castLocal(spellID, targetID string) error {
	if _, err := h.caster.Cast(spellID); err != nil {
		return err
	}
	h.emit(protocol.NewAction(protocol.CastSpell, protocol.CastSpellPayload{
		SpellID:    spellID,
		CasterName: h.name,
		TargetID:   targetID,
	}))
	return nil
}

func (h *Host) broadcastRoster() {
	payload := protocol.RosterPayload{Roster: h.state.Roster}
	if h.state.Phase == engine.PhaseLobby {
		h.emit(protocol.NewAction(protocol.PlayerUpdate, payload))
		return
	}
	h.emit(protocol.NewAction(protocol.GlobalTick, payload))
}

func (h *Host) recordOutcomes() {
	for _, p := range h.state.Roster {
		h.deps.Stats.RecordOutcome(h.ctx, stats.Outcome{
			ParticipantID: p.ID,
			Name:          p.Name,
			Won:           p.Status == protocol.StatusWon,
			TimeTakenMS:   p.TotalTimeMS,
			Mistakes:      p.Mistakes,
			RoundScore:    p.RoundScore,
			Rounds:        h.state.Round,
		})
	}
}

func (h *Host) emit(action protocol.Action) {
	if err := h.conn.Emit(h.ctx, action); err != nil {
		h.log.Warn("emit failed", zap.String("type", string(action.Type)), zap.Error(err))
	}
}

func (h *Host) pushSnapshot() {
	select {
	case h.snapshots <- h.state:
	default:
		// Slow observer; latest state supersedes anyway.
	}
}

func (h *Host) notify(n Notice) {
	select {
	case h.notices <- n:
	default:
	}
}
