package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvelope_RejectsUnknownActionType(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"roomCode":"1234","action":{"type":"TELEPORT"}}`))
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestParseEnvelope_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"roomCode":`))
	require.Error(t, err)
}

func TestParseEnvelope_RoundTripsThroughEncode(t *testing.T) {
	in := Envelope{
		RoomCode: "4821",
		Action: NewAction(UpdateMyStatus, StatusUpdatePayload{
			SenderID:       "p1",
			Status:         StatusLost,
			Mistakes:       5,
			GuessedLetters: []string{"e", "z"},
		}),
	}
	data, err := EncodeEnvelope(in)
	require.NoError(t, err)

	out, err := ParseEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, "4821", out.RoomCode)
	require.Equal(t, UpdateMyStatus, out.Action.Type)

	var patch StatusUpdatePayload
	require.NoError(t, out.Action.Decode(&patch))
	require.Equal(t, StatusLost, patch.Status)
	require.Equal(t, 5, patch.Mistakes)
	require.Nil(t, patch.TotalTimeMS, "omitted totalTime must decode as nil, not zero")
}

func TestCountdownPayload_NullClearsTheCounter(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"roomCode":"1234","action":{"type":"ROUND_COUNTDOWN","payload":{"count":null}}}`))
	require.NoError(t, err)

	var countdown CountdownPayload
	require.NoError(t, env.Action.Decode(&countdown))
	require.Nil(t, countdown.Count)

	env, err = ParseEnvelope([]byte(`{"roomCode":"1234","action":{"type":"ROUND_COUNTDOWN","payload":{"count":3}}}`))
	require.NoError(t, err)
	require.NoError(t, env.Action.Decode(&countdown))
	require.NotNil(t, countdown.Count)
	require.Equal(t, 3, *countdown.Count)
}

func TestDecode_RequiresPayload(t *testing.T) {
	err := Action{Type: GlobalTick}.Decode(&RosterPayload{})
	require.Error(t, err)
}

func TestNewAction_NilPayloadOmitsField(t *testing.T) {
	a := NewAction(PlayerLeft, nil)
	require.Empty(t, a.Payload)
}
