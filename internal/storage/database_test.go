package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kioku-app/kioku/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db.Close()

	db, err = Open(dsn)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	db.Close()
}

func TestCardRoundTrip(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	card := domain.NewCard("感謝する", now)
	card.SetStability(3.17)
	card.SetDifficulty(5.5)
	last := now.Add(-48 * time.Hour)
	card.LastReview = &last

	if err := db.CreateCard("alice", card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	got, err := db.GetCard("alice", "感謝する")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got == nil {
		t.Fatal("GetCard returned nil for an existing card")
	}
	if got.CardID != card.CardID || got.Word != card.Word || got.State != card.State {
		t.Errorf("got %+v, want %+v", got, card)
	}
	if got.Step == nil || *got.Step != 0 {
		t.Errorf("Step = %v, want 0", got.Step)
	}
	if got.Stability == nil || *got.Stability != 3.17 {
		t.Errorf("Stability = %v, want 3.17", got.Stability)
	}
	if got.Difficulty == nil || *got.Difficulty != 5.5 {
		t.Errorf("Difficulty = %v, want 5.5", got.Difficulty)
	}
	if !got.Due.Equal(card.Due) {
		t.Errorf("Due = %v, want %v", got.Due, card.Due)
	}
	if got.LastReview == nil || !got.LastReview.Equal(last) {
		t.Errorf("LastReview = %v, want %v", got.LastReview, last)
	}
}

func TestCardNullableFieldsSurviveRoundTrip(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	card := domain.NewCard("word", now)
	if err := db.CreateCard("alice", card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	got, err := db.GetCard("alice", "word")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.Stability != nil || got.Difficulty != nil || got.LastReview != nil {
		t.Errorf("pre-review fields should stay nil, got %+v", got)
	}
}

func TestGetCardAbsent(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetCard("alice", "nope")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got != nil {
		t.Errorf("GetCard = %+v, want nil", got)
	}
}

func TestCreateCardDuplicateFails(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	card := domain.NewCard("word", now)
	if err := db.CreateCard("alice", card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	if err := db.CreateCard("alice", card); err == nil {
		t.Error("second insert for the same (user, word) should fail")
	}
	// A different user may hold a card for the same word.
	if err := db.CreateCard("bob", card); err != nil {
		t.Errorf("CreateCard for another user: %v", err)
	}
}

func TestNextDueCardOrdering(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	later := domain.NewCard("later", now.Add(-time.Hour))
	later.Due = now.Add(-time.Hour)
	earlier := domain.NewCard("earlier", now.Add(-2*time.Hour))
	earlier.Due = now.Add(-2 * time.Hour)
	future := domain.NewCard("future", now)
	future.Due = now.Add(time.Hour)

	for _, c := range []domain.Card{later, earlier, future} {
		if err := db.CreateCard("alice", c); err != nil {
			t.Fatalf("CreateCard(%q): %v", c.Word, err)
		}
	}

	got, err := db.NextDueCard("alice", now)
	if err != nil {
		t.Fatalf("NextDueCard: %v", err)
	}
	if got == nil || got.Word != "earlier" {
		t.Errorf("NextDueCard = %+v, want the earliest due card", got)
	}

	count, err := db.CountDue("alice", now)
	if err != nil {
		t.Fatalf("CountDue: %v", err)
	}
	if count != 2 {
		t.Errorf("CountDue = %d, want 2", count)
	}
}

func TestNextDueCardNothingDue(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	card := domain.NewCard("word", now)
	card.Due = now.Add(time.Hour)
	if err := db.CreateCard("alice", card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	got, err := db.NextDueCard("alice", now)
	if err != nil {
		t.Fatalf("NextDueCard: %v", err)
	}
	if got != nil {
		t.Errorf("NextDueCard = %+v, want nil when nothing is due", got)
	}

	count, err := db.CountDue("alice", now)
	if err != nil {
		t.Fatalf("CountDue: %v", err)
	}
	if count != 0 {
		t.Errorf("CountDue = %d, want 0", count)
	}
}

func TestNextDueCardSkipsUndecodableRow(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// An earlier card with a state outside the enum, written behind the
	// typed API's back.
	_, err := db.conn.Exec(`
		INSERT INTO cards (user_id, word, card_id, state, due, created_at)
		VALUES ('alice', 'broken', 1, 99, ?, ?)
	`, now.Add(-2*time.Hour), now)
	if err != nil {
		t.Fatalf("insert broken row: %v", err)
	}

	good := domain.NewCard("good", now.Add(-time.Hour))
	good.Due = now.Add(-time.Hour)
	if err := db.CreateCard("alice", good); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	got, err := db.NextDueCard("alice", now)
	if err != nil {
		t.Fatalf("NextDueCard: %v", err)
	}
	if got == nil || got.Word != "good" {
		t.Errorf("NextDueCard = %+v, want the decodable card", got)
	}
}

func TestUpdateCardState(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	card := domain.NewCard("word", now)
	if err := db.CreateCard("alice", card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	card.State = domain.Review
	card.ClearStep()
	card.SetStability(2.3)
	card.SetDifficulty(6.4)
	card.Due = now.Add(72 * time.Hour)
	card.LastReview = &now

	if err := db.UpdateCardState("alice", card); err != nil {
		t.Fatalf("UpdateCardState: %v", err)
	}

	got, err := db.GetCard("alice", "word")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.State != domain.Review {
		t.Errorf("State = %v, want Review", got.State)
	}
	if got.Step != nil {
		t.Errorf("Step = %v, want nil after graduation", *got.Step)
	}
	if got.Stability == nil || *got.Stability != 2.3 {
		t.Errorf("Stability = %v, want 2.3", got.Stability)
	}
	if !got.Due.Equal(card.Due) {
		t.Errorf("Due = %v, want %v", got.Due, card.Due)
	}
}

func TestUpdateCardStateMissingCard(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := db.UpdateCardState("alice", domain.NewCard("ghost", now)); err == nil {
		t.Error("updating a card that was never created should fail")
	}
}

func TestReviewLogs(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := domain.ReviewLog{
		CardID:         42,
		Word:           "word",
		Rating:         domain.Again,
		ReviewDatetime: now,
		StateBefore:    domain.Learning,
		DueBefore:      now,
	}
	second := domain.ReviewLog{
		CardID:         42,
		Word:           "word",
		Rating:         domain.Good,
		ReviewDatetime: now.Add(10 * time.Minute),
		StateBefore:    domain.Learning,
		DueBefore:      now.Add(time.Minute),
	}

	// Inserted newest first; ReviewLogs must return them oldest first.
	for _, log := range []domain.ReviewLog{second, first} {
		if err := db.InsertReviewLog("alice", log); err != nil {
			t.Fatalf("InsertReviewLog: %v", err)
		}
	}

	logs, err := db.ReviewLogs("alice", "word")
	if err != nil {
		t.Fatalf("ReviewLogs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if logs[0].Rating != domain.Again || logs[1].Rating != domain.Good {
		t.Errorf("logs out of order: %v then %v", logs[0].Rating, logs[1].Rating)
	}
	if !logs[0].ReviewDatetime.Equal(now) {
		t.Errorf("ReviewDatetime = %v, want %v", logs[0].ReviewDatetime, now)
	}
	if logs[0].StateBefore != domain.Learning {
		t.Errorf("StateBefore = %v, want Learning", logs[0].StateBefore)
	}
	if !logs[1].DueBefore.Equal(second.DueBefore) {
		t.Errorf("DueBefore = %v, want %v", logs[1].DueBefore, second.DueBefore)
	}
}

func TestListWords(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, word := range []string{"b", "a", "c"} {
		card := domain.NewCard(word, now)
		card.CardID += int64(i)
		if err := db.CreateCard("alice", card); err != nil {
			t.Fatalf("CreateCard(%q): %v", word, err)
		}
	}
	if err := db.CreateCard("bob", domain.NewCard("z", now)); err != nil {
		t.Fatalf("CreateCard for bob: %v", err)
	}

	words, err := db.ListWords("alice")
	if err != nil {
		t.Fatalf("ListWords: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(words) != len(want) {
		t.Fatalf("ListWords = %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("ListWords[%d] = %q, want %q", i, words[i], want[i])
		}
	}
}
