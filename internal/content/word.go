// Package content loads vocabulary item payloads from a directory of
// per-word JSON files, optionally kept in sync with a git repository.
// The files exist in several historical schema versions; the loader absorbs
// those differences so the rest of the system sees one shape.
package content

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// Word is the decoded payload for one vocabulary item.
type Word struct {
	Version string `json:"version"`
	Word    string `json:"word"`

	// Collocations sits at the top level in schemas before v0.3.0.
	Collocations []string `json:"collocations"`

	// Explanations holds the nested v0.3.0+ layout.
	Explanations *Explanations `json:"explanations"`

	YoutubeLink string `json:"youtube_link"`
}

// Explanations is the v0.3.0+ nesting of word detail fields.
type Explanations struct {
	Collocations []string `json:"collocations"`
}

// CollocationList returns the word's collocations regardless of schema
// version, or an error when the payload has none.
func (w *Word) CollocationList() ([]string, error) {
	if len(w.Collocations) > 0 {
		return w.Collocations, nil
	}
	if w.Explanations != nil && len(w.Explanations.Collocations) > 0 {
		return w.Explanations.Collocations, nil
	}
	version := w.Version
	if version == "" {
		version = "unknown"
	}
	return nil, fmt.Errorf("no collocations for word %q with version %s", w.Word, version)
}

// Loader reads word payloads from a directory of <word>.json files.
type Loader struct {
	dir string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadWord reads and decodes the payload for the given word.
func (l *Loader) LoadWord(word string) (*Word, error) {
	path := filepath.Join(l.dir, word+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read word file for %q: %w", word, err)
	}

	var w Word
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode word file for %q: %w", word, err)
	}
	if w.Word == "" {
		w.Word = word
	}
	return &w, nil
}

// RandomCollocation returns one of the word's collocations at random.
func (l *Loader) RandomCollocation(word string) (string, error) {
	w, err := l.LoadWord(word)
	if err != nil {
		return "", err
	}
	list, err := w.CollocationList()
	if err != nil {
		return "", err
	}
	return list[rand.Intn(len(list))], nil
}

// Words lists every word with a payload file in the directory, sorted by
// filename order as returned by the filesystem walk.
func (l *Loader) Words() ([]string, error) {
	var words []string
	err := filepath.WalkDir(l.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(strings.ToLower(name), ".json") {
			words = append(words, strings.TrimSuffix(name, filepath.Ext(name)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk content directory %s: %w", l.dir, err)
	}
	return words, nil
}
