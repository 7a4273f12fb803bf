package fsrs

import "errors"

// Sentinel errors for the fsrs package. Check with errors.Is.
var (
	// ErrInvalidRating is returned when ReviewCard receives a rating
	// outside the four-valued enum.
	ErrInvalidRating = errors.New("fsrs: invalid rating")

	// ErrNonMonotonic is returned when the review time is strictly earlier
	// than the card's recorded last review. The elapsed-time formulas assume
	// forward-moving clocks; a backwards review is caller error.
	ErrNonMonotonic = errors.New("fsrs: review time before card's last review")

	// ErrInvalidWeights is returned when a weight is outside its bounds.
	ErrInvalidWeights = errors.New("fsrs: weights out of bounds")
)
