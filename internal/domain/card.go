package domain

import "time"

// Card is the persisted memory state for one (user, word) pair.
type Card struct {
	CardID     int64      `json:"card_id"`
	Word       string     `json:"word"`
	State      State      `json:"state"`
	Step       *int       `json:"step"`       // nil once the card is in Review.
	Stability  *float64   `json:"stability"`  // nil before the first scheduling pass.
	Difficulty *float64   `json:"difficulty"` // nil before the first scheduling pass.
	Due        time.Time  `json:"due"`
	LastReview *time.Time `json:"last_review"` // nil before the first review.
}

// NewCard creates a card for the given word in the Learning state,
// due immediately. The card ID is the creation time in epoch milliseconds.
func NewCard(word string, now time.Time) Card {
	step := 0
	return Card{
		CardID: now.UnixMilli(),
		Word:   word,
		State:  Learning,
		Step:   &step,
		Due:    now,
	}
}

// Clone returns a deep copy of the card. Pointer fields are copied by value.
func (c Card) Clone() Card {
	out := c
	if c.Step != nil {
		v := *c.Step
		out.Step = &v
	}
	if c.Stability != nil {
		v := *c.Stability
		out.Stability = &v
	}
	if c.Difficulty != nil {
		v := *c.Difficulty
		out.Difficulty = &v
	}
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return out
}

// SetStability sets the card's stability in place.
func (c *Card) SetStability(s float64) {
	c.Stability = &s
}

// SetDifficulty sets the card's difficulty in place.
func (c *Card) SetDifficulty(d float64) {
	c.Difficulty = &d
}

// SetStep sets the card's learning step in place.
func (c *Card) SetStep(step int) {
	c.Step = &step
}

// ClearStep removes the learning step, used when a card graduates to Review.
func (c *Card) ClearStep() {
	c.Step = nil
}
