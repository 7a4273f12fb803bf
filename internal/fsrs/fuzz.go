package fsrs

import (
	"math"
	"math/rand"
)

// Fuzz widens each scheduled interval by a small random amount so that cards
// reviewed together do not all come due on the same day. The width grows with
// the interval in piecewise bands.
type fuzzBand struct {
	start, end float64
	factor     float64
}

var fuzzBands = []fuzzBand{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// fuzzDelta is 1.0 + sum over bands of factor * max(min(ivl, end) - start, 0).
func fuzzDelta(interval float64) float64 {
	delta := 1.0
	for _, b := range fuzzBands {
		delta += b.factor * math.Max(math.Min(interval, b.end)-b.start, 0)
	}
	return delta
}

// applyFuzz jitters an interval in days within its fuzz range.
// Intervals under 2.5 days are returned unchanged.
func applyFuzz(days, maxDays int, rng *rand.Rand) int {
	if float64(days) < 2.5 {
		return days
	}

	ivl := float64(days)
	delta := fuzzDelta(ivl)

	lo := int(math.Round(ivl - delta))
	if lo < 2 {
		lo = 2
	}
	hi := int(math.Round(ivl + delta))
	if hi > maxDays {
		hi = maxDays
	}
	if lo > hi {
		lo = hi
	}

	return lo + rng.Intn(hi-lo+1)
}
