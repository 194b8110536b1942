package engine

import "github.com/isumenuka/hangman-sub000/pkg/protocol"

// NewLobbyState seeds the canonical state with the host as the sole
// participant. Exactly one roster entry ever carries IsHost.
func NewLobbyState(hostID, hostName string, rules Rules) State {
	return State{
		Roster: []protocol.Participant{{
			ID:             hostID,
			Name:           hostName,
			IsHost:         true,
			Status:         protocol.StatusLobby,
			GuessedLetters: []string{},
		}},
		Phase: PhaseLobby,
		Rules: rules,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func findByID(roster []protocol.Participant, id string) int {
	for i := range roster {
		if roster[i].ID == id {
			return i
		}
	}
	return -1
}

func findByName(roster []protocol.Participant, name string) int {
	for i := range roster {
		if roster[i].Name == name {
			return i
		}
	}
	return -1
}

func cloneRoster(roster []protocol.Participant) []protocol.Participant {
	out := make([]protocol.Participant, len(roster))
	copy(out, roster)
	for i := range out {
		out[i].GuessedLetters = append([]string(nil), out[i].GuessedLetters...)
	}
	return out
}

// allFinished reports whether every participant has resolved the current
// round. Spectators count as resolved; anyone still PLAYING, or a fresh
// LOBBY joiner, holds the round open. An empty roster is never finished.
func allFinished(roster []protocol.Participant) bool {
	if len(roster) == 0 {
		return false
	}
	for i := range roster {
		switch roster[i].Status {
		case protocol.StatusWon, protocol.StatusLost, protocol.StatusSpectating:
		default:
			return false
		}
	}
	return true
}

// clearDanglingSpectators drops spectating references that point at a
// participant no longer on the roster.
func clearDanglingSpectators(roster []protocol.Participant) {
	for i := range roster {
		if roster[i].SpectatingID == "" {
			continue
		}
		if findByID(roster, roster[i].SpectatingID) < 0 {
			roster[i].SpectatingID = ""
		}
	}
}
