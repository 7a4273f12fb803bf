package fsrs

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/kioku-app/kioku/internal/domain"
)

// SchedulerConfig configures a Scheduler. Zero values get defaults;
// see the field comments.
type SchedulerConfig struct {
	Weights          Weights         `json:"weights"`           // zero -> DefaultWeights
	DesiredRetention float64         `json:"desired_retention"` // zero -> 0.9
	LearningSteps    []time.Duration `json:"learning_steps"`    // nil -> [1m, 10m]; empty -> no steps
	RelearningSteps  []time.Duration `json:"relearning_steps"`  // nil -> [10m]; empty -> no steps
	MaximumInterval  int             `json:"maximum_interval"`  // days; zero -> 36500
	EnableFuzzing    bool            `json:"enable_fuzzing"`    // off by default
}

// Scheduler computes review schedules with the FSRS v6 algorithm.
// ReviewCard never mutates its input, so one Scheduler is safe to share
// across any number of concurrent sessions.
type Scheduler struct {
	model            model
	desiredRetention float64
	learningSteps    []time.Duration
	relearningSteps  []time.Duration
	maximumInterval  int
	enableFuzzing    bool
	rng              *rand.Rand
}

// NewScheduler creates a Scheduler from cfg, filling zero-value fields with
// defaults and rejecting out-of-range values.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	weights := cfg.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	retention := cfg.DesiredRetention
	if retention == 0 {
		retention = 0.9
	}
	if retention < 0 || retention > 1 {
		return nil, fmt.Errorf("fsrs: desired retention %f out of range (0, 1]", retention)
	}

	maxIvl := cfg.MaximumInterval
	if maxIvl == 0 {
		maxIvl = 36500
	}
	if maxIvl < 0 {
		return nil, fmt.Errorf("fsrs: maximum interval %d must be positive", maxIvl)
	}

	learning := cfg.LearningSteps
	if learning == nil {
		learning = []time.Duration{time.Minute, 10 * time.Minute}
	}
	relearning := cfg.RelearningSteps
	if relearning == nil {
		relearning = []time.Duration{10 * time.Minute}
	}

	return &Scheduler{
		model:            newModel(weights),
		desiredRetention: retention,
		learningSteps:    learning,
		relearningSteps:  relearning,
		maximumInterval:  maxIvl,
		enableFuzzing:    cfg.EnableFuzzing,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// ReviewCard applies one review at the given time and returns the updated
// card and a review log. The input card is not mutated.
//
// Returns ErrInvalidRating for a rating outside Again..Easy and
// ErrNonMonotonic when now is strictly earlier than the card's last review.
func (s *Scheduler) ReviewCard(card domain.Card, rating domain.Rating, now time.Time) (domain.Card, domain.ReviewLog, error) {
	if !rating.IsValid() {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if card.LastReview != nil && now.Before(*card.LastReview) {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("%w: review at %s, last review at %s",
			ErrNonMonotonic, now.Format(time.RFC3339), card.LastReview.Format(time.RFC3339))
	}

	c := card.Clone()

	log := domain.ReviewLog{
		CardID:         c.CardID,
		Word:           c.Word,
		Rating:         rating,
		ReviewDatetime: now,
		StateBefore:    c.State,
		DueBefore:      c.Due,
	}

	var elapsedDays float64
	if c.LastReview != nil {
		elapsedDays = now.Sub(*c.LastReview).Hours() / 24.0
	}

	s.updateMemory(&c, rating, elapsedDays)

	interval := s.transition(&c, rating)

	if s.enableFuzzing && c.State == domain.Review {
		days := int(interval.Hours() / 24.0)
		if days > 0 {
			fuzzed := applyFuzz(days, s.maximumInterval, s.rng)
			interval = time.Duration(fuzzed) * 24 * time.Hour
		}
	}

	c.Due = now.Add(interval)
	c.LastReview = &now

	return c, log, nil
}

// Retrievability returns the predicted recall probability for the card at
// the given time, or 0 before the card's first review.
func (s *Scheduler) Retrievability(card domain.Card, now time.Time) float64 {
	if card.LastReview == nil || card.Stability == nil {
		return 0
	}
	elapsed := now.Sub(*card.LastReview).Hours() / 24.0
	return s.model.retrievability(elapsed, *card.Stability)
}

// updateMemory recomputes stability and difficulty for the review.
func (s *Scheduler) updateMemory(c *domain.Card, rating domain.Rating, elapsedDays float64) {
	if c.Stability == nil {
		// First scheduling pass: initialize from the rating.
		c.SetStability(s.model.initStability(rating))
		c.SetDifficulty(s.model.initDifficulty(rating, true))
		return
	}

	stability := *c.Stability
	difficulty := *c.Difficulty

	if elapsedDays < 1 {
		c.SetStability(s.model.shortTermStability(stability, rating))
	} else {
		r := s.model.retrievability(elapsedDays, stability)
		c.SetStability(s.model.nextStability(difficulty, stability, r, rating))
	}
	c.SetDifficulty(s.model.nextDifficulty(difficulty, rating))
}

// transition applies the (state, rating) table and returns the interval
// until the card is next due.
func (s *Scheduler) transition(c *domain.Card, rating domain.Rating) time.Duration {
	switch c.State {
	case domain.Learning:
		return s.stepThrough(c, rating, s.learningSteps)
	case domain.Relearning:
		return s.stepThrough(c, rating, s.relearningSteps)
	default:
		return s.reviewTransition(c, rating)
	}
}

// stepThrough walks the learning or relearning step sequence.
func (s *Scheduler) stepThrough(c *domain.Card, rating domain.Rating, steps []time.Duration) time.Duration {
	step := 0
	if c.Step != nil {
		step = *c.Step
	}

	// No steps configured, or a stale step index past the sequence: graduate.
	if len(steps) == 0 || (step >= len(steps) && rating != domain.Again) {
		return s.graduate(c)
	}

	switch rating {
	case domain.Again:
		c.SetStep(0)
		return steps[0]

	case domain.Hard:
		// Hard holds the current step; at the first step the interval is
		// stretched so Hard still lands between Again and Good.
		if step == 0 && len(steps) == 1 {
			return time.Duration(float64(steps[0]) * 1.5)
		}
		if step == 0 && len(steps) >= 2 {
			return (steps[0] + steps[1]) / 2
		}
		return steps[step]

	case domain.Good:
		next := step + 1
		if next >= len(steps) {
			return s.graduate(c)
		}
		c.SetStep(next)
		return steps[next]

	default: // Easy skips the remaining steps.
		return s.graduate(c)
	}
}

// reviewTransition handles a card already in the Review state.
func (s *Scheduler) reviewTransition(c *domain.Card, rating domain.Rating) time.Duration {
	if rating == domain.Again && len(s.relearningSteps) > 0 {
		c.State = domain.Relearning
		c.SetStep(0)
		return s.relearningSteps[0]
	}

	// Hard, Good, Easy, or Again with no relearning steps configured.
	c.ClearStep()
	days := s.model.nextInterval(*c.Stability, s.desiredRetention, s.maximumInterval)
	return time.Duration(days) * 24 * time.Hour
}

// graduate promotes a card out of its step sequence into Review.
func (s *Scheduler) graduate(c *domain.Card) time.Duration {
	c.State = domain.Review
	c.ClearStep()
	days := s.model.nextInterval(*c.Stability, s.desiredRetention, s.maximumInterval)
	return time.Duration(days) * 24 * time.Hour
}
