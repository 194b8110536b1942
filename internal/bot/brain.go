// Package bot is the host-side bot brain boundary. The host polls it on
// a timer for each bot participant; whatever comes back is folded into
// host-local state exactly like a guest status update. Brain failures
// are swallowed and treated as a wait.
package bot

import (
	"context"
	"strings"
)

type DecisionType string

const (
	DecisionGuess DecisionType = "GUESS"
	DecisionChat  DecisionType = "CHAT"
	DecisionWait  DecisionType = "WAIT"
)

type Decision struct {
	Type    DecisionType
	Letter  string
	Message string
}

// Context is what a brain sees of one bot's round.
type Context struct {
	Masked   string
	Guessed  []string
	Mistakes int
	Limit    int
}

type Brain interface {
	Decide(ctx context.Context, bc Context) (Decision, error)
}

// FrequencyBrain guesses letters in English frequency order. It never
// fails and never repeats a guess.
type FrequencyBrain struct{}

const frequencyOrder = "etaoinshrdlcumwfgypbvkjxqz"

func (FrequencyBrain) Decide(_ context.Context, bc Context) (Decision, error) {
	guessed := make(map[string]bool, len(bc.Guessed))
	for _, g := range bc.Guessed {
		guessed[strings.ToLower(g)] = true
	}
	for _, c := range frequencyOrder {
		letter := string(c)
		if !guessed[letter] {
			return Decision{Type: DecisionGuess, Letter: letter}, nil
		}
	}
	return Decision{Type: DecisionWait}, nil
}
