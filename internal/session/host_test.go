package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/internal/bot"
	"github.com/isumenuka/hangman-sub000/internal/engine"
	"github.com/isumenuka/hangman-sub000/internal/stats"
	"github.com/isumenuka/hangman-sub000/internal/words"
	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

const recvTimeout = 3 * time.Second

// fakeConn is an in-memory Conn: the test plays the relay by writing to
// inbox and reading emitted actions from sent.
type fakeConn struct {
	id    string
	inbox chan protocol.Action
	sent  chan protocol.Action
	once  sync.Once
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:    id,
		inbox: make(chan protocol.Action, 64),
		sent:  make(chan protocol.Action, 64),
	}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) RoomCode() string { return "4821" }

func (f *fakeConn) Status() string { return StatusConnected }

func (f *fakeConn) Inbox() <-chan protocol.Action { return f.inbox }

func (f *fakeConn) Emit(_ context.Context, action protocol.Action) error {
	select {
	case f.sent <- action:
		return nil
	default:
		return errors.New("sent buffer full")
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.inbox) })
	return nil
}

func recvEmit(t *testing.T, f *fakeConn) protocol.Action {
	t.Helper()
	select {
	case a := <-f.sent:
		return a
	case <-time.After(recvTimeout):
		t.Fatalf("timed out waiting for an emitted action")
	}
	return protocol.Action{}
}

// awaitEmit skips emitted actions until one of the wanted type arrives.
func awaitEmit(t *testing.T, f *fakeConn, typ protocol.ActionType) protocol.Action {
	t.Helper()
	deadline := time.After(recvTimeout)
	for {
		select {
		case a := <-f.sent:
			if a.Type == typ {
				return a
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func noEmit(t *testing.T, f *fakeConn, within time.Duration) {
	t.Helper()
	select {
	case a := <-f.sent:
		t.Fatalf("unexpected emission %s", a.Type)
	case <-time.After(within):
	}
}

func decodeRoster(t *testing.T, action protocol.Action) []protocol.Participant {
	t.Helper()
	var payload protocol.RosterPayload
	if err := action.Decode(&payload); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	return payload.Roster
}

type failingSource struct{ err error }

func (s failingSource) GenerateRound(context.Context, []string, string) (protocol.RoundPayload, error) {
	return protocol.RoundPayload{}, s.err
}

// blockingSource parks GenerateRound until released, so tests can observe
// the in-flight window.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) GenerateRound(ctx context.Context, _ []string, _ string) (protocol.RoundPayload, error) {
	s.started <- struct{}{}
	select {
	case <-s.release:
		return protocol.RoundPayload{Word: "ember"}, nil
	case <-ctx.Done():
		return protocol.RoundPayload{}, ctx.Err()
	}
}

func newTestHost(t *testing.T, rules engine.Rules, source words.RoundSource) (*Host, *fakeConn) {
	t.Helper()
	conn := newFakeConn("h1")
	h := NewHost(context.Background(), conn, "alice", rules, HostDeps{
		Rounds:     source,
		Brain:      bot.FrequencyBrain{},
		Stats:      stats.NopSink{},
		Difficulty: "normal",
		Log:        zap.NewNop(),
	})
	t.Cleanup(h.Close)
	return h, conn
}

func TestHost_AnnouncesItselfInLobby(t *testing.T) {
	_, conn := newTestHost(t, engine.DefaultRules(), words.NewStaticSource(nil))

	a := recvEmit(t, conn)
	if a.Type != protocol.PlayerUpdate {
		t.Fatalf("want PLAYER_UPDATE, got %s", a.Type)
	}
	roster := decodeRoster(t, a)
	if len(roster) != 1 || !roster[0].IsHost || roster[0].Status != protocol.StatusLobby {
		t.Fatalf("lobby announce must carry the host alone: %+v", roster)
	}
}

func TestHost_AdmitsJoinerAndRebroadcastsFullRoster(t *testing.T) {
	_, conn := newTestHost(t, engine.DefaultRules(), words.NewStaticSource(nil))
	recvEmit(t, conn) // initial announce

	conn.inbox <- protocol.NewAction(protocol.JoinRequest, protocol.JoinRequestPayload{Name: "bob", SenderID: "g1"})

	a := awaitEmit(t, conn, protocol.PlayerUpdate)
	roster := decodeRoster(t, a)
	if len(roster) != 2 {
		t.Fatalf("want both participants in the broadcast, got %d", len(roster))
	}
	for _, p := range roster {
		if p.Status != protocol.StatusLobby {
			t.Fatalf("pre-round roster must be all LOBBY: %+v", p)
		}
	}
}

func TestHost_StartRoundBroadcastsGameStartThenRosterTick(t *testing.T) {
	h, conn := newTestHost(t, engine.DefaultRules(), words.NewStaticSource([]string{"ember"}))
	recvEmit(t, conn)
	conn.inbox <- protocol.NewAction(protocol.JoinRequest, protocol.JoinRequestPayload{Name: "bob", SenderID: "g1"})
	awaitEmit(t, conn, protocol.PlayerUpdate)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	if err := h.StartRound(ctx); err != nil {
		t.Fatalf("start round: %v", err)
	}

	start := recvEmit(t, conn)
	if start.Type != protocol.GameStart {
		t.Fatalf("GAME_START must precede the roster tick, got %s", start.Type)
	}
	var payload protocol.GameStartPayload
	if err := start.Decode(&payload); err != nil {
		t.Fatalf("decode game start: %v", err)
	}
	if payload.Round != 1 || payload.MistakeLimit != 5 || payload.Payload.Word != "ember" {
		t.Fatalf("unexpected game start payload: %+v", payload)
	}

	tick := recvEmit(t, conn)
	if tick.Type != protocol.GlobalTick {
		t.Fatalf("want GLOBAL_TICK after GAME_START, got %s", tick.Type)
	}
	for _, p := range decodeRoster(t, tick) {
		if p.Status != protocol.StatusPlaying || p.Mistakes != 0 || len(p.GuessedLetters) != 0 {
			t.Fatalf("round start must reset per-round fields: %+v", p)
		}
	}
}

func TestHost_StatusPatchChangesOnlyTheSender(t *testing.T) {
	h, conn := newTestHost(t, engine.DefaultRules(), words.NewStaticSource([]string{"ember"}))
	recvEmit(t, conn)
	conn.inbox <- protocol.NewAction(protocol.JoinRequest, protocol.JoinRequestPayload{Name: "bob", SenderID: "g1"})
	awaitEmit(t, conn, protocol.PlayerUpdate)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	if err := h.StartRound(ctx); err != nil {
		t.Fatalf("start round: %v", err)
	}
	awaitEmit(t, conn, protocol.GlobalTick)

	conn.inbox <- protocol.NewAction(protocol.UpdateMyStatus, protocol.StatusUpdatePayload{
		SenderID: "g1", Status: protocol.StatusLost, Mistakes: 5, GuessedLetters: []string{"z", "x", "q", "j", "k"},
	})

	roster := decodeRoster(t, awaitEmit(t, conn, protocol.GlobalTick))
	for _, p := range roster {
		switch p.ID {
		case "g1":
			if p.Status != protocol.StatusLost || p.Mistakes != 5 {
				t.Fatalf("sender's record not patched: %+v", p)
			}
		case "h1":
			if p.Status != protocol.StatusPlaying || p.Mistakes != 0 {
				t.Fatalf("host record must be untouched: %+v", p)
			}
		}
	}
}

func TestHost_AllFinishedArmsCountdownAndLobbyJoinerClearsIt(t *testing.T) {
	h, conn := newTestHost(t, engine.DefaultRules(), words.NewStaticSource([]string{"ember"}))
	recvEmit(t, conn)
	conn.inbox <- protocol.NewAction(protocol.JoinRequest, protocol.JoinRequestPayload{Name: "bob", SenderID: "g1"})
	awaitEmit(t, conn, protocol.PlayerUpdate)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	if err := h.StartRound(ctx); err != nil {
		t.Fatalf("start round: %v", err)
	}

	conn.inbox <- protocol.NewAction(protocol.UpdateMyStatus, protocol.StatusUpdatePayload{
		SenderID: "h1", Status: protocol.StatusWon, Mistakes: 1,
	})
	conn.inbox <- protocol.NewAction(protocol.UpdateMyStatus, protocol.StatusUpdatePayload{
		SenderID: "g1", Status: protocol.StatusLost, Mistakes: 5,
	})

	countdown := awaitEmit(t, conn, protocol.RoundCountdown)
	var c protocol.CountdownPayload
	if err := countdown.Decode(&c); err != nil || c.Count == nil || *c.Count != 5 {
		t.Fatalf("countdown must start at the configured count: %+v err=%v", c, err)
	}

	// A fresh LOBBY joiner falsifies all-finished; the countdown must be
	// withdrawn with an explicit null broadcast.
	conn.inbox <- protocol.NewAction(protocol.JoinRequest, protocol.JoinRequestPayload{Name: "carol", SenderID: "g2"})

	deadline := time.After(recvTimeout)
	for {
		select {
		case a := <-conn.sent:
			if a.Type != protocol.RoundCountdown {
				continue
			}
			var cleared protocol.CountdownPayload
			if err := a.Decode(&cleared); err != nil {
				t.Fatalf("decode countdown: %v", err)
			}
			if cleared.Count == nil {
				return // withdrawn
			}
			// A 1s tick may race the join; keep scanning.
		case <-deadline:
			t.Fatalf("countdown was never withdrawn after the lobby join")
		}
	}
}

func TestHost_CountdownExpiryAutoStartsNextRound(t *testing.T) {
	rules := engine.Rules{MistakeLimit: 5, MaxRounds: 2, CountdownSec: 1}
	h, conn := newTestHost(t, rules, words.NewStaticSource([]string{"aa", "bb"}))
	recvEmit(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	if err := h.StartRound(ctx); err != nil {
		t.Fatalf("start round: %v", err)
	}
	first := awaitEmit(t, conn, protocol.GameStart)
	var firstStart protocol.GameStartPayload
	if err := first.Decode(&firstStart); err != nil {
		t.Fatalf("decode game start: %v", err)
	}

	// Solo host finishes the round, arming the 1s countdown.
	conn.inbox <- protocol.NewAction(protocol.UpdateMyStatus, protocol.StatusUpdatePayload{
		SenderID: "h1", Status: protocol.StatusWon,
	})
	awaitEmit(t, conn, protocol.RoundCountdown)

	second := awaitEmit(t, conn, protocol.GameStart)
	var secondStart protocol.GameStartPayload
	if err := second.Decode(&secondStart); err != nil {
		t.Fatalf("decode game start: %v", err)
	}
	if secondStart.Round != 2 {
		t.Fatalf("want auto-started round 2, got %d", secondStart.Round)
	}
	if secondStart.Payload.Word == firstStart.Payload.Word {
		t.Fatalf("word %q repeated across rounds", secondStart.Payload.Word)
	}
}

func TestHost_ProviderFailureLeavesSessionInLobby(t *testing.T) {
	wantErr := errors.New("word api: status 503")
	h, conn := newTestHost(t, engine.DefaultRules(), failingSource{err: wantErr})
	recvEmit(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	if err := h.StartRound(ctx); !errors.Is(err, wantErr) {
		t.Fatalf("provider error must surface, got %v", err)
	}

	s, err := h.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if s.Phase != engine.PhaseLobby || s.Round != 0 {
		t.Fatalf("failed start must not advance the lifecycle: phase=%v round=%d", s.Phase, s.Round)
	}
	noEmit(t, conn, 100*time.Millisecond)
}

func TestHost_SecondStartWhileFetchPendingIsRejected(t *testing.T) {
	source := &blockingSource{started: make(chan struct{}, 1), release: make(chan struct{})}
	h, conn := newTestHost(t, engine.DefaultRules(), source)
	recvEmit(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()

	firstDone := make(chan error, 1)
	go func() { firstDone <- h.StartRound(ctx) }()
	<-source.started

	if err := h.StartRound(ctx); !errors.Is(err, ErrStartPending) {
		t.Fatalf("want ErrStartPending for the overlapping call, got %v", err)
	}

	close(source.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first start should succeed after release: %v", err)
	}
}

func TestHost_AddBotJoinsRosterAsBot(t *testing.T) {
	h, conn := newTestHost(t, engine.DefaultRules(), words.NewStaticSource(nil))
	recvEmit(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()
	if err := h.AddBot(ctx, "Bot-1"); err != nil {
		t.Fatalf("add bot: %v", err)
	}

	roster := decodeRoster(t, awaitEmit(t, conn, protocol.PlayerUpdate))
	if len(roster) != 2 {
		t.Fatalf("want host plus bot, got %d entries", len(roster))
	}
	botEntry := roster[1]
	if !botEntry.IsBot || botEntry.Name != "Bot-1" || botEntry.Status != protocol.StatusLobby {
		t.Fatalf("unexpected bot entry: %+v", botEntry)
	}
}

func TestHost_IgnoresItsOwnEchoedBroadcasts(t *testing.T) {
	_, conn := newTestHost(t, engine.DefaultRules(), words.NewStaticSource(nil))
	recvEmit(t, conn)

	// The relay echoes the host's own fan-out back to it; none of these
	// may loop into new state or emissions.
	conn.inbox <- protocol.NewAction(protocol.GlobalTick, protocol.RosterPayload{})
	conn.inbox <- protocol.NewAction(protocol.PlayerUpdate, protocol.RosterPayload{})
	conn.inbox <- protocol.NewAction(protocol.RoundCountdown, protocol.CountdownPayload{})

	noEmit(t, conn, 150*time.Millisecond)
}

func TestHost_TotalTimeAccumulatesAcrossRounds(t *testing.T) {
	rules := engine.Rules{MistakeLimit: 5, MaxRounds: 2, CountdownSec: 1}
	h, conn := newTestHost(t, rules, words.NewStaticSource([]string{"aa", "bb"}))
	recvEmit(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.StartRound(ctx); err != nil {
		t.Fatalf("start round: %v", err)
	}
	awaitEmit(t, conn, protocol.GlobalTick)

	// Either word resolves on one of these two letters.
	winRound := func() {
		if err := h.Guess(ctx, "a"); err != nil {
			t.Fatalf("guess: %v", err)
		}
		_ = h.Guess(ctx, "b")
	}

	time.Sleep(250 * time.Millisecond)
	winRound()
	firstTotal := hostTotalWhenWon(t, conn)
	if firstTotal < 250 {
		t.Fatalf("round 1 time underreported: %dms", firstTotal)
	}

	// The 1s countdown expires and round 2 auto-starts; the next win must
	// report round 1's time plus round 2's, not round 2's alone.
	awaitEmit(t, conn, protocol.GameStart)
	time.Sleep(60 * time.Millisecond)
	winRound()
	secondTotal := hostTotalWhenWon(t, conn)
	if secondTotal < firstTotal+60 {
		t.Fatalf("totalTime must accumulate across rounds: round 1 %dms, after round 2 %dms", firstTotal, secondTotal)
	}
}

// hostTotalWhenWon scans roster broadcasts until the host's entry reads
// WON and returns its totalTime.
func hostTotalWhenWon(t *testing.T, conn *fakeConn) int64 {
	t.Helper()
	deadline := time.After(recvTimeout)
	for {
		select {
		case a := <-conn.sent:
			if a.Type != protocol.GlobalTick {
				continue
			}
			for _, p := range decodeRoster(t, a) {
				if p.ID == "h1" && p.Status == protocol.StatusWon {
					return p.TotalTimeMS
				}
			}
		case <-deadline:
			t.Fatalf("host never reached WON in a broadcast")
		}
	}
}

func TestHost_OwnGuessesFlowThroughTheEngine(t *testing.T) {
	h, conn := newTestHost(t, engine.DefaultRules(), words.NewStaticSource([]string{"aa"}))
	recvEmit(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), recvTimeout)
	defer cancel()

	if err := h.Guess(ctx, "a"); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("guess before a round must fail, got %v", err)
	}

	if err := h.StartRound(ctx); err != nil {
		t.Fatalf("start round: %v", err)
	}
	awaitEmit(t, conn, protocol.GlobalTick)

	if err := h.Guess(ctx, "a"); err != nil {
		t.Fatalf("guess: %v", err)
	}
	roster := decodeRoster(t, awaitEmit(t, conn, protocol.GlobalTick))
	if roster[0].Status != protocol.StatusWon || len(roster[0].GuessedLetters) != 1 {
		t.Fatalf("solo winning guess must resolve the host's record: %+v", roster[0])
	}
}
