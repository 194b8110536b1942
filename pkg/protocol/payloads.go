package protocol

// Status is a participant's round state. It drives both the UI and the
// host's round lifecycle machine.
type Status string

const (
	StatusLobby      Status = "LOBBY"
	StatusPlaying    Status = "PLAYING"
	StatusWon        Status = "WON"
	StatusLost       Status = "LOST"
	StatusSpectating Status = "SPECTATING"
)

// Participant is one roster entry. The host owns the canonical roster;
// every broadcast carries the full slice so replicas are replaced
// wholesale, never merged.
type Participant struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	IsHost         bool     `json:"isHost"`
	IsBot          bool     `json:"isBot"`
	Status         Status   `json:"status"`
	Mistakes       int      `json:"mistakes"`
	GuessedLetters []string `json:"guessedLetters"`
	RoundScore     int      `json:"roundScore"`
	// TotalTimeMS accumulates across rounds; only a tournament reset
	// clears it.
	TotalTimeMS  int64  `json:"totalTime"`
	SpectatingID   string   `json:"spectatingId,omitempty"`
}

type WelcomePayload struct {
	ID string `json:"id"`
}

type JoinRequestPayload struct {
	Name     string `json:"name"`
	SenderID string `json:"senderId"`
}

// RosterPayload backs both PLAYER_UPDATE (lobby churn) and GLOBAL_TICK
// (in-round status fan-out).
type RosterPayload struct {
	Roster []Participant `json:"roster"`
}

// RoundPayload is what the content provider hands back for one round.
type RoundPayload struct {
	Word       string   `json:"word"`
	Hints      []string `json:"hints"`
	Difficulty string   `json:"difficulty"`
	ArtHint    string   `json:"artHint,omitempty"`
}

type GameStartPayload struct {
	Round        int          `json:"round"`
	MistakeLimit int          `json:"mistakeLimit"`
	Payload      RoundPayload `json:"payload"`
}

type StatusUpdatePayload struct {
	SenderID       string   `json:"senderId"`
	Status         Status   `json:"status"`
	Mistakes       int      `json:"mistakes"`
	GuessedLetters []string `json:"guessedLetters"`
	TotalTimeMS    *int64   `json:"totalTime,omitempty"`
	SpectatingID   string   `json:"spectatingId,omitempty"`
}

type CastSpellPayload struct {
	SpellID    string `json:"spellId"`
	CasterName string `json:"casterName"`
	TargetID   string `json:"targetId"`
}

// CountdownPayload carries the remaining seconds before the next round
// auto-starts. A nil Count clears any countdown the client is showing.
type CountdownPayload struct {
	Count *int `json:"count"`
}

type PlayerLeftPayload struct {
	ID string `json:"id"`
}
