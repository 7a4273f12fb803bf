package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kioku-app/kioku/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// cardRow is the scan target for rows of the cards table. Nullable columns
// use the sql.Null* types and are converted at the boundary so the rest of
// the system only ever sees a typed domain.Card.
type cardRow struct {
	CardID     int64
	Word       string
	State      int
	Step       sql.NullInt64
	Stability  sql.NullFloat64
	Difficulty sql.NullFloat64
	Due        time.Time
	LastReview sql.NullTime
}

func (r cardRow) toCard() (domain.Card, error) {
	state := domain.State(r.State)
	if !state.IsValid() {
		return domain.Card{}, fmt.Errorf("card %q has invalid state %d", r.Word, r.State)
	}

	card := domain.Card{
		CardID: r.CardID,
		Word:   r.Word,
		State:  state,
		Due:    r.Due.UTC(),
	}
	if r.Step.Valid {
		step := int(r.Step.Int64)
		card.Step = &step
	}
	if r.Stability.Valid {
		card.SetStability(r.Stability.Float64)
	}
	if r.Difficulty.Valid {
		card.SetDifficulty(r.Difficulty.Float64)
	}
	if r.LastReview.Valid {
		last := r.LastReview.Time.UTC()
		card.LastReview = &last
	}
	return card, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

// CreateCard inserts a new card for the user. Inserting a second card for
// the same (user, word) pair fails on the primary key.
func (db *DB) CreateCard(userID string, card domain.Card) error {
	_, err := db.conn.Exec(`
		INSERT INTO cards (user_id, word, card_id, state, step, stability, difficulty, due, last_review, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		userID,
		card.Word,
		card.CardID,
		int(card.State),
		nullInt(card.Step),
		nullFloat(card.Stability),
		nullFloat(card.Difficulty),
		card.Due.UTC(),
		nullTime(card.LastReview),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %q for user %s: %w", card.Word, userID, err)
	}
	return nil
}

// GetCard retrieves the card for (user, word), or (nil, nil) when absent.
func (db *DB) GetCard(userID, word string) (*domain.Card, error) {
	row := db.conn.QueryRow(`
		SELECT card_id, word, state, step, stability, difficulty, due, last_review
		FROM cards WHERE user_id = ? AND word = ?
	`, userID, word)
	return scanCard(row, fmt.Sprintf("card %q for user %s", word, userID))
}

// NextDueCard returns the user's earliest card with due <= now,
// or (nil, nil) when nothing is due. Rows that fail to decode are skipped
// rather than wedging the whole queue on one bad card.
func (db *DB) NextDueCard(userID string, now time.Time) (*domain.Card, error) {
	rows, err := db.conn.Query(`
		SELECT card_id, word, state, step, stability, difficulty, due, last_review
		FROM cards WHERE user_id = ? AND due <= ?
		ORDER BY due ASC
	`, userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to find next due card for user %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r cardRow
		err := rows.Scan(
			&r.CardID,
			&r.Word,
			&r.State,
			&r.Step,
			&r.Stability,
			&r.Difficulty,
			&r.Due,
			&r.LastReview,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due card for user %s: %w", userID, err)
		}
		card, err := r.toCard()
		if err != nil {
			slog.Warn("skipping undecodable card", "user", userID, "word", r.Word, "error", err)
			continue
		}
		return &card, nil
	}
	return nil, rows.Err()
}

func scanCard(row *sql.Row, what string) (*domain.Card, error) {
	var r cardRow
	err := row.Scan(
		&r.CardID,
		&r.Word,
		&r.State,
		&r.Step,
		&r.Stability,
		&r.Difficulty,
		&r.Due,
		&r.LastReview,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to find %s: %w", what, err)
	}
	card, err := r.toCard()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return &card, nil
}

// UpdateCardState writes the card's scheduling fields back, keyed by
// (user, word). The whole scheduling state is written in one statement,
// so there are no partial updates.
func (db *DB) UpdateCardState(userID string, card domain.Card) error {
	res, err := db.conn.Exec(`
		UPDATE cards
		SET state = ?, step = ?, stability = ?, difficulty = ?, due = ?, last_review = ?
		WHERE user_id = ? AND word = ?
	`,
		int(card.State),
		nullInt(card.Step),
		nullFloat(card.Stability),
		nullFloat(card.Difficulty),
		card.Due.UTC(),
		nullTime(card.LastReview),
		userID,
		card.Word,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %q for user %s: %w", card.Word, userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update card %q for user %s: %w", card.Word, userID, err)
	}
	if affected == 0 {
		return fmt.Errorf("no card %q for user %s", card.Word, userID)
	}
	return nil
}

// CountDue returns how many of the user's cards have due <= now.
func (db *DB) CountDue(userID string, now time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM cards WHERE user_id = ? AND due <= ?
	`, userID, now.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards for user %s: %w", userID, err)
	}
	return count, nil
}

// InsertReviewLog appends one completed review to the history.
func (db *DB) InsertReviewLog(userID string, log domain.ReviewLog) error {
	_, err := db.conn.Exec(`
		INSERT INTO review_logs (user_id, card_id, word, rating, review_datetime, state_before, due_before)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		userID,
		log.CardID,
		log.Word,
		int(log.Rating),
		log.ReviewDatetime.UTC(),
		int(log.StateBefore),
		log.DueBefore.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log for %q: %w", log.Word, err)
	}
	return nil
}

// ReviewLogs returns the review history for (user, word), oldest first.
func (db *DB) ReviewLogs(userID, word string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.Query(`
		SELECT card_id, word, rating, review_datetime, state_before, due_before
		FROM review_logs WHERE user_id = ? AND word = ?
		ORDER BY review_datetime ASC
	`, userID, word)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for %q: %w", word, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			log         domain.ReviewLog
			rating      int
			stateBefore int
		)
		if err := rows.Scan(&log.CardID, &log.Word, &rating, &log.ReviewDatetime, &stateBefore, &log.DueBefore); err != nil {
			return nil, fmt.Errorf("failed to scan review log row for %q: %w", word, err)
		}
		log.Rating = domain.Rating(rating)
		log.StateBefore = domain.State(stateBefore)
		log.ReviewDatetime = log.ReviewDatetime.UTC()
		log.DueBefore = log.DueBefore.UTC()
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// ListWords returns every word the user has a card for, sorted.
func (db *DB) ListWords(userID string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT word FROM cards WHERE user_id = ? ORDER BY word ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list words for user %s: %w", userID, err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("failed to scan word row: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}
