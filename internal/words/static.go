package words

import (
	"context"
	"math/rand"

	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

// StaticSource serves rounds from an in-memory list. Used offline and in
// tests; same contract as the API source, including exhaustion errors.
type StaticSource struct {
	Words []string
}

var defaultWords = []string{
	"lantern", "glacier", "whisper", "compass", "thunder",
	"harvest", "cascade", "ember", "voyage", "monsoon",
}

func NewStaticSource(list []string) *StaticSource {
	if len(list) == 0 {
		list = defaultWords
	}
	return &StaticSource{Words: list}
}

func (s *StaticSource) GenerateRound(_ context.Context, exclude []string, difficulty string) (protocol.RoundPayload, error) {
	var candidates []string
	for _, w := range s.Words {
		if !contains(exclude, w) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return protocol.RoundPayload{}, ErrExhausted
	}
	word := candidates[rand.Intn(len(candidates))]
	return protocol.RoundPayload{
		Word:       word,
		Hints:      hintsFor(word),
		Difficulty: difficulty,
		ArtHint:    word,
	}, nil
}
