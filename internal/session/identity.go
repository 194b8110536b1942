package session

import (
	"crypto/rand"
	"math/big"

	"github.com/isumenuka/hangman-sub000/pkg/protocol"
)

// Notice is an out-of-band event surfaced to the UI layer: round-start
// failures, countdown changes, incoming spells, terminal states.
type Notice struct {
	Kind  NoticeKind
	Err   error
	Count *int // countdown value; nil clears the display
	Round int
	Spell protocol.CastSpellPayload
}

type NoticeKind string

const (
	NoticeRoundStarted     NoticeKind = "RoundStarted"
	NoticeRoundStartFailed NoticeKind = "RoundStartFailed"
	NoticeCountdown        NoticeKind = "Countdown"
	NoticeSpellLogged      NoticeKind = "SpellLogged"
	NoticeSpellIncoming    NoticeKind = "SpellIncoming"
	NoticeTournamentOver   NoticeKind = "TournamentOver"
	NoticeHostLost         NoticeKind = "HostLost"
	NoticeDisconnected     NoticeKind = "Disconnected"
)

// GenerateRoomCode returns a short numeric, human-typable room code. No
// uniqueness check against the relay; collision odds are accepted.
func GenerateRoomCode() (string, error) {
	const digits = "0123456789"
	code := make([]byte, 4)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}
