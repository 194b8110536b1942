package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

func TestGuess_TracksHitsMissesAndOrder(t *testing.T) {
	r := NewRound("Ember", 5)

	correct, err := r.Guess("E")
	require.NoError(t, err)
	require.True(t, correct, "uppercase input must match the lowercased word")

	correct, err = r.Guess("z")
	require.NoError(t, err)
	require.False(t, correct)
	require.Equal(t, 1, r.Mistakes())

	correct, err = r.Guess("m")
	require.NoError(t, err)
	require.True(t, correct)

	require.Equal(t, []string{"e", "z", "m"}, r.Guessed(), "guessed letters keep insertion order")
	require.Equal(t, "em_e_", r.Masked())
}

func TestGuess_RejectsNonLetters(t *testing.T) {
	r := NewRound("ember", 5)
	for _, bad := range []string{"", "ab", "  "} {
		_, err := r.Guess(bad)
		require.ErrorIs(t, err, ErrNotALetter, "input %q", bad)
	}
}

func TestGuess_RejectsRepeats(t *testing.T) {
	r := NewRound("ember", 5)
	_, err := r.Guess("e")
	require.NoError(t, err)
	_, err = r.Guess("e")
	require.ErrorIs(t, err, ErrAlreadyGuessed)
	require.Equal(t, 0, r.Mistakes(), "a repeat is not a mistake")
}

func TestWon_IgnoresSpaces(t *testing.T) {
	r := NewRound("ice age", 5)
	for _, l := range []string{"i", "c", "e", "a", "g"} {
		_, err := r.Guess(l)
		require.NoError(t, err)
	}
	require.True(t, r.Won())
	require.Equal(t, "ice age", r.Masked())
	require.Equal(t, protocol.StatusWon, r.Status())
}

func TestLost_AtMistakeCeiling(t *testing.T) {
	r := NewRound("ember", 3)
	for _, l := range []string{"x", "y", "z"} {
		_, err := r.Guess(l)
		require.NoError(t, err)
	}
	require.True(t, r.Lost())
	require.Equal(t, protocol.StatusLost, r.Status())

	_, err := r.Guess("e")
	require.ErrorIs(t, err, ErrRoundFinished)
}

func TestElapsed_FreezesOnceTheRoundResolves(t *testing.T) {
	r := NewRound("a", 5)
	_, err := r.Guess("a")
	require.NoError(t, err)
	require.True(t, r.Won())

	first := r.ElapsedMS()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, first, r.ElapsedMS(), "a resolved round must stop accruing time")
}

func TestStatusPatch_ReportsTimeOnlyWhenFinished(t *testing.T) {
	r := NewRound("ab", 5)
	_, err := r.Guess("a")
	require.NoError(t, err)

	patch := r.StatusPatch("me")
	require.Equal(t, "me", patch.SenderID)
	require.Equal(t, protocol.StatusPlaying, patch.Status)
	require.Nil(t, patch.TotalTimeMS, "elapsed time is withheld mid-round")

	_, err = r.Guess("b")
	require.NoError(t, err)
	patch = r.StatusPatch("me")
	require.Equal(t, protocol.StatusWon, patch.Status)
	require.NotNil(t, patch.TotalTimeMS)
	require.Equal(t, []string{"a", "b"}, patch.GuessedLetters)
}
