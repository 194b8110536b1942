package game

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownSpell = errors.New("unknown spell")
var ErrInsufficientPoints = errors.New("not enough points")
var ErrSpellOnCooldown = errors.New("spell on cooldown")

// Spell is a sabotage effect one participant applies to another's local
// client state. Cost and cooldown are enforced only at the origin; the
// wire protocol trusts the sender.
type Spell struct {
	ID       string
	Name     string
	Cost     int
	Cooldown time.Duration
}

var Spellbook = []Spell{
	{ID: "ink_blot", Name: "Ink Blot", Cost: 3, Cooldown: 15 * time.Second},
	{ID: "letter_shuffle", Name: "Letter Shuffle", Cost: 5, Cooldown: 20 * time.Second},
	{ID: "frozen_keys", Name: "Frozen Keys", Cost: 8, Cooldown: 30 * time.Second},
}

func SpellByID(id string) (Spell, error) {
	for _, s := range Spellbook {
		if s.ID == id {
			return s, nil
		}
	}
	return Spell{}, fmt.Errorf("%w: %q", ErrUnknownSpell, id)
}

// Caster tracks the local participant's spell points and per-spell
// cooldowns. One Caster per client, touched only by that client's loop.
type Caster struct {
	Points   int
	lastCast map[string]time.Time
	now      func() time.Time
}

func NewCaster(points int) *Caster {
	return &Caster{
		Points:   points,
		lastCast: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Cast checks affordability and cooldown, then deducts the cost and
// stamps the cooldown. The caller emits CAST_SPELL only on nil error.
func (c *Caster) Cast(spellID string) (Spell, error) {
	spell, err := SpellByID(spellID)
	if err != nil {
		return Spell{}, err
	}
	if c.Points < spell.Cost {
		return Spell{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, c.Points, spell.Cost)
	}
	if last, ok := c.lastCast[spell.ID]; ok {
		if remaining := spell.Cooldown - c.now().Sub(last); remaining > 0 {
			return Spell{}, fmt.Errorf("%w: %s for %s", ErrSpellOnCooldown, spell.ID, remaining.Round(time.Second))
		}
	}
	c.Points -= spell.Cost
	c.lastCast[spell.ID] = c.now()
	return spell, nil
}

// Earn credits points, e.g. for correct guesses.
func (c *Caster) Earn(points int) {
	c.Points += points
}
