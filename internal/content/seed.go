package content

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kioku-app/kioku/internal/domain"
)

// cardStore is the slice of the storage layer seeding needs.
type cardStore interface {
	GetCard(userID, word string) (*domain.Card, error)
	CreateCard(userID string, card domain.Card) error
}

// Seed reconciles the content directory with the user's cards: every word
// with a payload file but no card gets a fresh Learning card due immediately.
// Existing cards are never touched. Returns the number of cards created.
func Seed(loader *Loader, store cardStore, userID string, now time.Time, log *slog.Logger) (int, error) {
	words, err := loader.Words()
	if err != nil {
		return 0, fmt.Errorf("seed: list words: %w", err)
	}

	created := 0
	for i, word := range words {
		existing, err := store.GetCard(userID, word)
		if err != nil {
			return created, fmt.Errorf("seed: check card for %q: %w", word, err)
		}
		if existing != nil {
			continue
		}

		// Offset each ID by its index so cards created in the same
		// millisecond stay unique.
		card := domain.NewCard(word, now)
		card.CardID += int64(i)
		if err := store.CreateCard(userID, card); err != nil {
			return created, fmt.Errorf("seed: create card for %q: %w", word, err)
		}
		log.Info("new card seeded", "word", word, "user", userID)
		created++
	}

	return created, nil
}
