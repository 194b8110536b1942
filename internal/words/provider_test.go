package words

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAPISource_FetchesWordAndDerivesHints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "7", r.URL.Query().Get("length"))
		w.Write([]byte(`["Glacier"]`)) //nolint:errcheck
	}))
	defer srv.Close()

	source := NewAPISource(srv.URL, zap.NewNop())
	payload, err := source.GenerateRound(context.Background(), nil, "normal")
	require.NoError(t, err)
	require.Equal(t, "glacier", payload.Word, "words are normalized to lowercase")
	require.Len(t, payload.Hints, 5)
	require.Contains(t, payload.Hints[0], "7 letters")
	require.Equal(t, "normal", payload.Difficulty)
}

func TestAPISource_DifficultySelectsWordLength(t *testing.T) {
	var gotLength string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.URL.Query().Get("length")
		w.Write([]byte(`["quintessential"]`)) //nolint:errcheck
	}))
	defer srv.Close()

	source := NewAPISource(srv.URL, zap.NewNop())
	for difficulty, want := range map[string]string{"easy": "5", "normal": "7", "hard": "9"} {
		_, err := source.GenerateRound(context.Background(), nil, difficulty)
		require.NoError(t, err)
		require.Equal(t, want, gotLength, "difficulty %s", difficulty)
	}
}

func TestAPISource_SurfacesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	source := NewAPISource(srv.URL, zap.NewNop())
	_, err := source.GenerateRound(context.Background(), nil, "normal")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 503")
}

func TestAPISource_EmptyResponseIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`)) //nolint:errcheck
	}))
	defer srv.Close()

	source := NewAPISource(srv.URL, zap.NewNop())
	_, err := source.GenerateRound(context.Background(), nil, "normal")
	require.ErrorIs(t, err, ErrNoWord)
}

func TestAPISource_GivesUpWhenOnlyExcludedWordsComeBack(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`["glacier"]`)) //nolint:errcheck
	}))
	defer srv.Close()

	source := NewAPISource(srv.URL, zap.NewNop())
	_, err := source.GenerateRound(context.Background(), []string{"glacier"}, "normal")
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, 3, calls, "the source retries before giving up")
}

func TestStaticSource_SkipsExcludedWords(t *testing.T) {
	source := NewStaticSource([]string{"ember", "glacier"})

	payload, err := source.GenerateRound(context.Background(), []string{"ember"}, "normal")
	require.NoError(t, err)
	require.Equal(t, "glacier", payload.Word)

	_, err = source.GenerateRound(context.Background(), []string{"ember", "glacier"}, "normal")
	require.ErrorIs(t, err, ErrExhausted)
}

func TestStaticSource_EmptyListFallsBackToBuiltins(t *testing.T) {
	source := NewStaticSource(nil)
	payload, err := source.GenerateRound(context.Background(), nil, "normal")
	require.NoError(t, err)
	require.NotEmpty(t, payload.Word)
	require.Len(t, payload.Hints, 5)
}
