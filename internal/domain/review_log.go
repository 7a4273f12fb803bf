package domain

import "time"

// ReviewLog records a single completed review of a card.
// StateBefore and DueBefore snapshot the card as it was presented,
// so a review history can be replayed or audited.
type ReviewLog struct {
	CardID         int64     `json:"card_id"`
	Word           string    `json:"word"`
	Rating         Rating    `json:"rating"`
	ReviewDatetime time.Time `json:"review_datetime"`
	StateBefore    State     `json:"state_before"`
	DueBefore      time.Time `json:"due_before"`
}
