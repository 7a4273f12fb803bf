// Package session drives one review cycle at a time for a learner:
// fetch the next due card, generate a question, collect the answer, grade
// it, collect a rating, reschedule, persist, advance.
//
// The host UI may redraw any step arbitrarily often while waiting for the
// learner, so every read is side-effect free and the two side-effecting
// steps (grading, submitting) are latched in the session context: repeated
// entry never re-issues a completed external call.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kioku-app/kioku/internal/domain"
	"github.com/kioku-app/kioku/internal/fsrs"
)

// State is the review-cycle state.
type State int

const (
	Idle       State = iota // No active card; next Start pulls one.
	Question                // Question shown, awaiting the learner's answer.
	Answer                  // Answer frozen, grading and rating happen here.
	Submitting              // Rating committed, reschedule-and-persist pending.
)

var stateNames = [...]string{Idle: "Idle", Question: "Question", Answer: "Answer", Submitting: "Submitting"}

// String returns the state name.
func (s State) String() string {
	if s >= Idle && s <= Submitting {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Sentinel errors. Check with errors.Is.
var (
	// ErrWrongState is returned when an operation is invoked in a state
	// that does not own it.
	ErrWrongState = errors.New("session: operation not valid in current state")

	// ErrEmptyAnswer is returned when the learner submits a blank answer.
	ErrEmptyAnswer = errors.New("session: answer is empty")

	// ErrNotGraded is returned when a rating arrives before grading.
	ErrNotGraded = errors.New("session: answer has not been graded yet")
)

// Learner identifies who is reviewing and how their questions are produced.
type Learner struct {
	ID              string
	Level           string
	TargetLanguages []string
}

// CardStore is the persistence collaborator.
type CardStore interface {
	// NextDueCard returns the earliest card with due <= now, or (nil, nil)
	// when nothing is due.
	NextDueCard(userID string, now time.Time) (*domain.Card, error)
	UpdateCardState(userID string, card domain.Card) error
	InsertReviewLog(userID string, log domain.ReviewLog) error
	CountDue(userID string, now time.Time) (int, error)
}

// QuestionService generates questions and grades answers.
type QuestionService interface {
	GenerateQuestion(ctx context.Context, word, level string, targetLanguages []string) (domain.QuestionAnswer, error)
	GradeAnswer(ctx context.Context, word, correctAnswer, sourceQuestion, learnerAnswer string, targetLanguages []string) (string, error)
}

// Transcriber converts a recorded answer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Deps bundles the session's collaborators.
type Deps struct {
	Store       CardStore
	Questions   QuestionService
	Transcriber Transcriber
	Scheduler   *fsrs.Scheduler
	Clock       func() time.Time // nil -> time.Now
	Log         *slog.Logger
}

// Context is a read-only snapshot of the current cycle for rendering.
type Context struct {
	State    State                  `json:"state"`
	Card     *domain.Card           `json:"card,omitempty"`
	Question *domain.QuestionAnswer `json:"question,omitempty"`
	Answer   string                 `json:"answer,omitempty"`
	Review   string                 `json:"review,omitempty"`
	Graded   bool                   `json:"graded"`
	Rating   *domain.Rating         `json:"rating,omitempty"`
	DueCount int                    `json:"due_count"`
	Done     bool                   `json:"done"`
}

// Session sequences review cycles for one learner. It is single-flight:
// all methods take an internal lock, and one card is in play at a time.
type Session struct {
	mu      sync.Mutex
	learner Learner
	deps    Deps
	clock   func() time.Time
	log     *slog.Logger

	state  State
	card   *domain.Card
	qa     *domain.QuestionAnswer
	answer string
	review string
	graded bool
	rating domain.Rating
	rated  bool

	// Outcome of the scheduler, cached so a persistence retry never
	// recomputes or regrades.
	updatedCard *domain.Card
	reviewLog   *domain.ReviewLog

	dueCount int
	done     bool
}

// New creates an idle session for the learner.
func New(learner Learner, deps Deps) *Session {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		learner: learner,
		deps:    deps,
		clock:   clock,
		log:     log.With("component", "session", "user", learner.ID),
	}
}

// State returns the current cycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Context returns a snapshot of the cycle for rendering. The card and
// question are copies; mutating them does not affect the session.
func (s *Session) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Context{
		State:    s.state,
		Answer:   s.answer,
		Review:   s.review,
		Graded:   s.graded,
		DueCount: s.dueCount,
		Done:     s.done,
	}
	if s.card != nil {
		c := s.card.Clone()
		out.Card = &c
	}
	if s.qa != nil {
		qa := *s.qa
		out.Question = &qa
	}
	if s.rated {
		r := s.rating
		out.Rating = &r
	}
	return out
}

// Start pulls the next due card and generates its question, moving
// Idle -> Question. It returns (false, nil) when nothing is due; that is
// completion, not failure. On a collaborator error the session stays Idle
// with no partial context.
func (s *Session) Start(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return false, fmt.Errorf("%w: Start in %s", ErrWrongState, s.state)
	}

	now := s.clock()
	card, err := s.deps.Store.NextDueCard(s.learner.ID, now)
	if err != nil {
		return false, fmt.Errorf("session: fetch due card: %w", err)
	}
	if card == nil {
		s.done = true
		s.dueCount = 0
		s.log.Info("no cards due, session complete")
		return false, nil
	}

	count, err := s.deps.Store.CountDue(s.learner.ID, now)
	if err != nil {
		// The count is informational; a failed count never blocks a review.
		s.log.Warn("due count unavailable", "error", err)
		count = 0
	}

	qa, err := s.deps.Questions.GenerateQuestion(ctx, card.Word, s.learner.Level, s.learner.TargetLanguages)
	if err != nil {
		return false, fmt.Errorf("session: generate question: %w", err)
	}

	s.card = card
	s.qa = &qa
	s.answer = ""
	s.review = ""
	s.graded = false
	s.rated = false
	s.updatedCard = nil
	s.reviewLog = nil
	s.dueCount = count
	s.done = false
	s.state = Question

	s.log.Info("review started", "word", card.Word, "due_count", count)
	return true, nil
}

// SubmitAnswer freezes the learner's answer and moves Question -> Answer.
func (s *Session) SubmitAnswer(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Question {
		return fmt.Errorf("%w: SubmitAnswer in %s", ErrWrongState, s.state)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyAnswer
	}

	s.answer = trimmed
	s.state = Answer
	return nil
}

// SubmitAudioAnswer transcribes the recording and submits the text as the
// answer. Transcription failures keep the session in Question.
func (s *Session) SubmitAudioAnswer(ctx context.Context, recording []byte) error {
	s.mu.Lock()
	if s.state != Question {
		s.mu.Unlock()
		return fmt.Errorf("%w: SubmitAudioAnswer in %s", ErrWrongState, s.state)
	}
	transcriber := s.deps.Transcriber
	s.mu.Unlock()

	if transcriber == nil {
		return errors.New("session: no transcriber configured")
	}

	// The transcription round trip runs unlocked; SubmitAnswer re-checks
	// the state afterwards.
	text, err := transcriber.Transcribe(ctx, recording)
	if err != nil {
		return fmt.Errorf("session: transcribe answer: %w", err)
	}
	return s.SubmitAnswer(text)
}

// Grade returns the grading review for the frozen answer, issuing the
// grading call at most once per cycle. Re-entry returns the cached text.
func (s *Session) Grade(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Answer {
		return "", fmt.Errorf("%w: Grade in %s", ErrWrongState, s.state)
	}
	if s.graded {
		return s.review, nil
	}

	review, err := s.deps.Questions.GradeAnswer(ctx, s.card.Word, s.qa.Answer, s.qa.Question, s.answer, s.learner.TargetLanguages)
	if err != nil {
		return "", fmt.Errorf("session: grade answer: %w", err)
	}

	s.review = review
	s.graded = true
	s.log.Info("answer graded", "word", s.card.Word)
	return review, nil
}

// SubmitRating commits the chosen rating and moves Answer -> Submitting.
// No scheduling or I/O happens on this edge.
func (s *Session) SubmitRating(rating domain.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Answer {
		return fmt.Errorf("%w: SubmitRating in %s", ErrWrongState, s.state)
	}
	if !s.graded {
		return ErrNotGraded
	}
	if !rating.IsValid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}

	s.rating = rating
	s.rated = true
	s.state = Submitting
	return nil
}

// Submit reschedules the card and persists the result, then clears the
// cycle and returns to Idle. The scheduler runs once per cycle; if the
// write fails, retrying Submit re-attempts only the write; the learner
// never re-answers or re-grades.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Submitting {
		return fmt.Errorf("%w: Submit in %s", ErrWrongState, s.state)
	}

	if s.updatedCard == nil {
		updated, log, err := s.deps.Scheduler.ReviewCard(*s.card, s.rating, s.clock())
		if err != nil {
			return fmt.Errorf("session: schedule review: %w", err)
		}
		s.updatedCard = &updated
		s.reviewLog = &log
	}

	if err := s.deps.Store.UpdateCardState(s.learner.ID, *s.updatedCard); err != nil {
		return fmt.Errorf("session: persist card: %w", err)
	}
	if err := s.deps.Store.InsertReviewLog(s.learner.ID, *s.reviewLog); err != nil {
		// The card state is already saved; a missing history row is not
		// worth failing the cycle over.
		s.log.Warn("review log not recorded", "word", s.reviewLog.Word, "error", err)
	}

	s.log.Info("review submitted",
		"word", s.updatedCard.Word,
		"rating", s.rating.String(),
		"state", s.updatedCard.State.String(),
		"due", s.updatedCard.Due,
	)

	if s.dueCount > 0 {
		s.dueCount--
	}
	s.clearCycle()
	return nil
}

// Reset abandons the current cycle. No card mutation has happened before
// Submit, so dropping the in-memory context is all there is to do.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCycle()
	s.done = false
}

// clearCycle drops the per-cycle context and returns to Idle.
// Callers must hold s.mu.
func (s *Session) clearCycle() {
	s.state = Idle
	s.card = nil
	s.qa = nil
	s.answer = ""
	s.review = ""
	s.graded = false
	s.rated = false
	s.updatedCard = nil
	s.reviewLog = nil
}
