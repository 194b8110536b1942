// Package game contains the per-participant round rules: letter guessing
// against a target word, and the spellbook with its origin-side checks.
// Everything here runs on a single client; results travel to the host as
// UPDATE_MY_STATUS patches, never as direct roster writes.
package game

import (
	"errors"
	"strings"
	"time"

	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

var ErrAlreadyGuessed = errors.New("letter already guessed")
var ErrRoundFinished = errors.New("round already finished")
var ErrNotALetter = errors.New("guess must be a single letter")

// Round is one participant's view of the current word. Guessed letters
// keep insertion order so spectators can replay the sequence.
type Round struct {
	word       string
	guessed    []string
	mistakes   int
	limit      int
	startedAt  time.Time
	finishedAt time.Time
}

func NewRound(word string, mistakeLimit int) *Round {
	return &Round{
		word:      strings.ToLower(word),
		guessed:   []string{},
		limit:     mistakeLimit,
		startedAt: time.Now(),
	}
}

// Guess registers one letter. The returned bool reports whether the
// letter occurs in the word.
func (r *Round) Guess(letter string) (bool, error) {
	letter = strings.ToLower(strings.TrimSpace(letter))
	if len([]rune(letter)) != 1 {
		return false, ErrNotALetter
	}
	if r.Finished() {
		return false, ErrRoundFinished
	}
	for _, g := range r.guessed {
		if g == letter {
			return false, ErrAlreadyGuessed
		}
	}
	r.guessed = append(r.guessed, letter)
	hit := strings.Contains(r.word, letter)
	if !hit {
		r.mistakes++
	}
	if r.Finished() {
		r.finishedAt = time.Now()
	}
	return hit, nil
}

// Won reports whether every non-space character of the word is guessed.
func (r *Round) Won() bool {
	for _, c := range r.word {
		if c == ' ' {
			continue
		}
		if !r.has(string(c)) {
			return false
		}
	}
	return true
}

func (r *Round) Lost() bool {
	return r.mistakes >= r.limit
}

func (r *Round) Finished() bool {
	return r.Won() || r.Lost()
}

func (r *Round) Status() protocol.Status {
	switch {
	case r.Won():
		return protocol.StatusWon
	case r.Lost():
		return protocol.StatusLost
	default:
		return protocol.StatusPlaying
	}
}

func (r *Round) Mistakes() int { return r.mistakes }

func (r *Round) Guessed() []string {
	return append([]string(nil), r.guessed...)
}

// ElapsedMS reports wall time spent on this round, frozen at the moment
// the round resolved.
func (r *Round) ElapsedMS() int64 {
	if !r.finishedAt.IsZero() {
		return r.finishedAt.Sub(r.startedAt).Milliseconds()
	}
	return time.Since(r.startedAt).Milliseconds()
}

// Masked renders the word with unguessed letters blanked, spaces kept.
func (r *Round) Masked() string {
	var b strings.Builder
	for _, c := range r.word {
		switch {
		case c == ' ':
			b.WriteRune(' ')
		case r.has(string(c)):
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// StatusPatch builds the UPDATE_MY_STATUS payload for this round's
// current state. Elapsed time is only reported once the round resolved.
func (r *Round) StatusPatch(senderID string) protocol.StatusUpdatePayload {
	patch := protocol.StatusUpdatePayload{
		SenderID:       senderID,
		Status:         r.Status(),
		Mistakes:       r.mistakes,
		GuessedLetters: r.Guessed(),
	}
	if r.Finished() {
		ms := r.ElapsedMS()
		patch.TotalTimeMS = &ms
	}
	return patch
}

func (r *Round) has(letter string) bool {
	for _, g := range r.guessed {
		if g == letter {
			return true
		}
	}
	return false
}
