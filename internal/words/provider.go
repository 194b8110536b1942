// Package words is the content-provider boundary: it produces the round
// payload (word, hints, difficulty) the host broadcasts in GAME_START.
// A provider failure must abort the start attempt; the caller never
// transitions to PLAYING on error.
package words

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

var ErrNoWord = errors.New("content provider returned no word")
var ErrExhausted = errors.New("no unused words left")

// RoundSource generates one round payload, skipping anything in exclude.
type RoundSource interface {
	GenerateRound(ctx context.Context, exclude []string, difficulty string) (protocol.RoundPayload, error)
}

// APISource fetches words from a remote word API and derives hints
// locally. Network and quota errors surface to the caller untouched.
type APISource struct {
	BaseURL string
	Client  *http.Client
	Log     *zap.Logger
}

func NewAPISource(baseURL string, log *zap.Logger) *APISource {
	return &APISource{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Log:     log,
	}
}

func (s *APISource) GenerateRound(ctx context.Context, exclude []string, difficulty string) (protocol.RoundPayload, error) {
	length := wordLength(difficulty)

	// The API has no exclusion parameter, so retry a few times on a
	// repeat before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		word, err := s.fetchWord(ctx, length)
		if err != nil {
			return protocol.RoundPayload{}, err
		}
		if contains(exclude, word) {
			continue
		}
		return protocol.RoundPayload{
			Word:       word,
			Hints:      hintsFor(word),
			Difficulty: difficulty,
			ArtHint:    word,
		}, nil
	}
	return protocol.RoundPayload{}, ErrExhausted
}

func (s *APISource) fetchWord(ctx context.Context, length int) (string, error) {
	url := fmt.Sprintf("%s?length=%d", s.BaseURL, length)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("word api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("word api: status %d", resp.StatusCode)
	}

	var words []string
	if err := json.NewDecoder(resp.Body).Decode(&words); err != nil {
		return "", fmt.Errorf("word api: decode: %w", err)
	}
	if len(words) == 0 || words[0] == "" {
		return "", ErrNoWord
	}

	word := strings.ToLower(strings.TrimSpace(words[0]))
	s.Log.Debug("fetched word", zap.Int("length", len(word)))
	return word, nil
}

func wordLength(difficulty string) int {
	switch difficulty {
	case "easy":
		return 5
	case "hard":
		return 9
	default:
		return 7
	}
}

// hintsFor derives the five standard hints shown as the player burns
// through mistakes.
func hintsFor(word string) []string {
	runes := []rune(word)
	return []string{
		fmt.Sprintf("The word has %d letters", len(runes)),
		fmt.Sprintf("It starts with '%c'", runes[0]),
		fmt.Sprintf("It ends with '%c'", runes[len(runes)-1]),
		fmt.Sprintf("It contains %d vowels", countVowels(word)),
		fmt.Sprintf("The middle letter is '%c'", runes[len(runes)/2]),
	}
}

func countVowels(word string) int {
	n := 0
	for _, c := range word {
		if strings.ContainsRune("aeiou", c) {
			n++
		}
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
