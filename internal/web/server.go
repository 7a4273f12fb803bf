// Package web exposes the review session over a JSON HTTP API.
// Authentication is out of scope: callers identify the learner with the
// X-Learner-ID header and an upstream proxy is expected to enforce it.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kioku-app/kioku/internal/audio"
	"github.com/kioku-app/kioku/internal/domain"
	"github.com/kioku-app/kioku/internal/fsrs"
	"github.com/kioku-app/kioku/internal/session"
	"github.com/kioku-app/kioku/internal/storage"
)

const learnerHeader = "X-Learner-ID"

// LearnerDefaults is the profile applied to every learner. Per-learner
// profiles would come from an account system, which this backend does not
// own.
type LearnerDefaults struct {
	Level           string
	TargetLanguages []string
}

// Server holds the dependencies for the HTTP server and the per-learner
// sessions. One session exists per learner at a time.
type Server struct {
	db          *storage.DB
	router      *http.ServeMux
	scheduler   *fsrs.Scheduler
	questions   session.QuestionService
	transcriber session.Transcriber
	defaults    LearnerDefaults
	log         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, scheduler *fsrs.Scheduler, questions session.QuestionService, transcriber session.Transcriber, defaults LearnerDefaults, log *slog.Logger) *Server {
	s := &Server{
		db:          db,
		router:      http.NewServeMux(),
		scheduler:   scheduler,
		questions:   questions,
		transcriber: transcriber,
		defaults:    defaults,
		log:         log.With("component", "web"),
		sessions:    make(map[string]*session.Session),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /review", s.handleGetReview())
	s.router.HandleFunc("POST /review/start", s.handleStartReview())
	s.router.HandleFunc("POST /review/answer", s.handleSubmitAnswer())
	s.router.HandleFunc("POST /review/answer/audio", s.handleSubmitAudioAnswer())
	s.router.HandleFunc("POST /review/grade", s.handleGrade())
	s.router.HandleFunc("POST /review/rating", s.handleSubmitRating())
	s.router.HandleFunc("POST /review/submit", s.handleSubmit())
	s.router.HandleFunc("POST /review/reset", s.handleReset())
	s.router.HandleFunc("GET /due/count", s.handleDueCount())
	s.router.HandleFunc("GET /words", s.handleListWords())
}

// sessionFor returns the learner's session, creating it on first use.
func (s *Server) sessionFor(learnerID string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[learnerID]; ok {
		return sess
	}
	sess := session.New(session.Learner{
		ID:              learnerID,
		Level:           s.defaults.Level,
		TargetLanguages: s.defaults.TargetLanguages,
	}, session.Deps{
		Store:       s.db,
		Questions:   s.questions,
		Transcriber: s.transcriber,
		Scheduler:   s.scheduler,
		Log:         s.log,
	})
	s.sessions[learnerID] = sess
	return sess
}

func (s *Server) learnerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(learnerHeader)
	if id == "" {
		s.writeError(w, http.StatusUnauthorized, errors.New("missing "+learnerHeader+" header"))
		return "", false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

// writeError maps session and collaborator errors onto HTTP statuses and
// returns the message so the UI can say which step failed.
func (s *Server) writeError(w http.ResponseWriter, fallback int, err error) {
	status := fallback
	switch {
	case errors.Is(err, session.ErrWrongState):
		status = http.StatusConflict
	case errors.Is(err, session.ErrEmptyAnswer),
		errors.Is(err, session.ErrNotGraded),
		errors.Is(err, domain.ErrInvalidRating):
		status = http.StatusBadRequest
	case errors.Is(err, audio.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleGetReview returns the current cycle snapshot without side effects.
func (s *Server) handleGetReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		s.writeJSON(w, http.StatusOK, s.sessionFor(learner).Context())
	}
}

// handleStartReview pulls the next due card and generates its question.
func (s *Server) handleStartReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		sess := s.sessionFor(learner)
		started, err := sess.Start(r.Context())
		if err != nil {
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		if !started {
			s.writeJSON(w, http.StatusOK, sess.Context()) // done=true: nothing due
			return
		}
		s.writeJSON(w, http.StatusOK, sess.Context())
	}
}

func (s *Server) handleSubmitAnswer() http.HandlerFunc {
	type request struct {
		Text string `json:"text"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		sess := s.sessionFor(learner)
		if err := sess.SubmitAnswer(req.Text); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sess.Context())
	}
}

// handleSubmitAudioAnswer accepts raw audio bytes, transcribes them, and
// submits the text as the answer.
func (s *Server) handleSubmitAudioAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		recording, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
		if err != nil {
			s.writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		sess := s.sessionFor(learner)
		if err := sess.SubmitAudioAnswer(r.Context(), recording); err != nil {
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sess.Context())
	}
}

// handleGrade runs the grading step. Safe to call repeatedly: the session
// issues at most one grading call per cycle.
func (s *Server) handleGrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		sess := s.sessionFor(learner)
		if _, err := sess.Grade(r.Context()); err != nil {
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sess.Context())
	}
}

func (s *Server) handleSubmitRating() http.HandlerFunc {
	type request struct {
		Rating domain.Rating `json:"rating"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		sess := s.sessionFor(learner)
		if err := sess.SubmitRating(req.Rating); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sess.Context())
	}
}

// handleSubmit reschedules and persists. Retryable: a failed write leaves
// the computed result cached, so retrying re-attempts only the write.
func (s *Server) handleSubmit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		sess := s.sessionFor(learner)
		if err := sess.Submit(r.Context()); err != nil {
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sess.Context())
	}
}

func (s *Server) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		sess := s.sessionFor(learner)
		sess.Reset()
		s.writeJSON(w, http.StatusOK, sess.Context())
	}
}

func (s *Server) handleDueCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		count, err := s.db.CountDue(learner, time.Now().UTC())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"due_count": count})
	}
}

func (s *Server) handleListWords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner, ok := s.learnerID(w, r)
		if !ok {
			return
		}
		words, err := s.db.ListWords(learner)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if words == nil {
			words = []string{}
		}
		s.writeJSON(w, http.StatusOK, map[string][]string{"words": words})
	}
}
