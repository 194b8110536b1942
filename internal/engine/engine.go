// Package engine holds the host-side reconciliation logic: pure functions
// from (state, command) to (events, state). The host session actor owns
// the single mutable State and is the only caller of Apply; guests only
// ever see the roster snapshots the host broadcasts afterwards.
package engine

import (
	"errors"

	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrRoundInProgress = errors.New("round already in progress")
var ErrTournamentOver = errors.New("tournament already over")

type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhasePlaying        Phase = "playing"
	PhaseTournamentOver Phase = "tournament_over"
)

type Rules struct {
	MistakeLimit int
	MaxRounds    int
	CountdownSec int
}

func DefaultRules() Rules {
	return Rules{MistakeLimit: 5, MaxRounds: 3, CountdownSec: 5}
}

// DailyChallengeRules keeps the daily mode's looser ceiling. The two
// ceilings differ on purpose; both stay configurable.
func DailyChallengeRules() Rules {
	return Rules{MistakeLimit: 6, MaxRounds: 1, CountdownSec: 5}
}

type State struct {
	Roster []protocol.Participant
	Phase  Phase
	Round  int
	Rules  Rules

	// Countdown is the pending next-round counter, nil when no countdown
	// is armed. Any roster change that falsifies all-finished clears it.
	Countdown *int
}

type CommandType string

const (
	CmdAdmitJoin         CommandType = "AdmitJoin"
	CmdPatchStatus       CommandType = "PatchStatus"
	CmdRemoveParticipant CommandType = "RemoveParticipant"
	CmdStartRound        CommandType = "StartRound"
	CmdCountdownTick     CommandType = "CountdownTick"
	CmdResetTournament   CommandType = "ResetTournament"
)

type Command struct {
	Type     CommandType
	Name     string
	SenderID string
	IsBot    bool
	Patch    protocol.StatusUpdatePayload
	Round    protocol.RoundPayload
}

type EventType string

const (
	EvtRosterChanged    EventType = "RosterChanged"
	EvtRoundStarted     EventType = "RoundStarted"
	EvtCountdownStarted EventType = "CountdownStarted"
	EvtCountdownTicked  EventType = "CountdownTicked"
	EvtCountdownExpired EventType = "CountdownExpired"
	EvtCountdownCleared EventType = "CountdownCleared"
	EvtTournamentOver   EventType = "TournamentOver"
)

type Event struct {
	Type    EventType
	Count   int
	Round   int
	Payload protocol.RoundPayload
}

// Apply reconciles one command into the canonical state. It never mutates
// s; the returned State shares nothing mutable with the input.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {

	case CmdAdmitJoin:
		// Same transport id again is an idempotent retry.
		if findByID(s.Roster, cmd.SenderID) >= 0 {
			return nil, s, nil
		}
		ns := s
		roster := cloneRoster(s.Roster)
		// Same name under a new transport id is treated as a reconnect:
		// the stale entry is evicted. Two strangers picking the same name
		// collide here; the protocol cannot tell them apart.
		if i := findByName(roster, cmd.Name); i >= 0 {
			roster = append(roster[:i], roster[i+1:]...)
		}
		roster = append(roster, protocol.Participant{
			ID:             cmd.SenderID,
			Name:           cmd.Name,
			IsBot:          cmd.IsBot,
			Status:         protocol.StatusLobby,
			GuessedLetters: []string{},
		})
		ns.Roster = roster
		events := []Event{{Type: EvtRosterChanged}}
		events, ns = settleLifecycle(events, ns)
		return events, ns, nil

	case CmdPatchStatus:
		i := findByID(s.Roster, cmd.Patch.SenderID)
		if i < 0 {
			// Unknown sender, e.g. an update racing a departure. Drop.
			return nil, s, nil
		}
		prev := s.Roster[i]
		// Arbitration: a finished participant never re-enters PLAYING
		// inside the same round; only GAME_START resets statuses.
		if (prev.Status == protocol.StatusWon || prev.Status == protocol.StatusLost) &&
			cmd.Patch.Status == protocol.StatusPlaying {
			return nil, s, nil
		}
		ns := s
		roster := cloneRoster(s.Roster)
		p := &roster[i]
		p.Status = cmd.Patch.Status
		p.Mistakes = cmd.Patch.Mistakes
		p.GuessedLetters = append([]string(nil), cmd.Patch.GuessedLetters...)
		if cmd.Patch.TotalTimeMS != nil {
			p.TotalTimeMS = *cmd.Patch.TotalTimeMS
		}
		p.SpectatingID = cmd.Patch.SpectatingID
		clearDanglingSpectators(roster)
		if prev.Status != protocol.StatusWon && p.Status == protocol.StatusWon {
			p.RoundScore += winScore(s.Rules.MistakeLimit, p.Mistakes)
		}
		ns.Roster = roster
		events := []Event{{Type: EvtRosterChanged}}
		events, ns = settleLifecycle(events, ns)
		return events, ns, nil

	case CmdRemoveParticipant:
		i := findByID(s.Roster, cmd.SenderID)
		if i < 0 {
			return nil, s, nil
		}
		ns := s
		roster := cloneRoster(s.Roster)
		roster = append(roster[:i], roster[i+1:]...)
		clearDanglingSpectators(roster)
		ns.Roster = roster
		events := []Event{{Type: EvtRosterChanged}}
		events, ns = settleLifecycle(events, ns)
		return events, ns, nil

	case CmdStartRound:
		if s.Phase == PhaseTournamentOver || s.Round >= s.Rules.MaxRounds {
			return nil, s, ErrTournamentOver
		}
		if s.Phase == PhasePlaying && !allFinished(s.Roster) {
			return nil, s, ErrRoundInProgress
		}
		ns := s
		events := []Event{}
		if s.Countdown != nil {
			ns.Countdown = nil
			events = append(events, Event{Type: EvtCountdownCleared})
		}
		ns.Round = s.Round + 1
		ns.Phase = PhasePlaying
		roster := cloneRoster(s.Roster)
		for i := range roster {
			roster[i].Status = protocol.StatusPlaying
			roster[i].Mistakes = 0
			roster[i].GuessedLetters = []string{}
			roster[i].SpectatingID = ""
		}
		ns.Roster = roster
		events = append(events,
			Event{Type: EvtRoundStarted, Round: ns.Round, Payload: cmd.Round},
			Event{Type: EvtRosterChanged},
		)
		return events, ns, nil

	case CmdCountdownTick:
		if s.Countdown == nil {
			return nil, s, nil
		}
		ns := s
		c := *s.Countdown - 1
		if c <= 0 {
			ns.Countdown = nil
			return []Event{{Type: EvtCountdownExpired}}, ns, nil
		}
		ns.Countdown = &c
		return []Event{{Type: EvtCountdownTicked, Count: c}}, ns, nil

	case CmdResetTournament:
		ns := s
		ns.Phase = PhaseLobby
		ns.Round = 0
		ns.Countdown = nil
		roster := cloneRoster(s.Roster)
		for i := range roster {
			roster[i].Status = protocol.StatusLobby
			roster[i].Mistakes = 0
			roster[i].GuessedLetters = []string{}
			roster[i].RoundScore = 0
			roster[i].TotalTimeMS = 0
			roster[i].SpectatingID = ""
		}
		ns.Roster = roster
		return []Event{{Type: EvtRosterChanged}}, ns, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// settleLifecycle runs the all-finished check after any roster change.
// It arms the next-round countdown at most once per finished round, ends
// the tournament on the last round, and clears a pending countdown the
// moment the condition regresses.
func settleLifecycle(events []Event, s State) ([]Event, State) {
	if s.Phase != PhasePlaying {
		return events, s
	}
	if allFinished(s.Roster) {
		if s.Countdown != nil {
			return events, s
		}
		if s.Round >= s.Rules.MaxRounds {
			s.Phase = PhaseTournamentOver
			events = append(events, Event{Type: EvtTournamentOver})
			return events, s
		}
		c := s.Rules.CountdownSec
		s.Countdown = &c
		events = append(events, Event{Type: EvtCountdownStarted, Count: c})
		return events, s
	}
	if s.Countdown != nil {
		s.Countdown = nil
		events = append(events, Event{Type: EvtCountdownCleared})
	}
	return events, s
}

func winScore(limit, mistakes int) int {
	if score := limit - mistakes; score > 1 {
		return score
	}
	return 1
}
