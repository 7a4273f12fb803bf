package domain

import "strings"

// HintSeparator splits the hints field into individual hints.
const HintSeparator = ","

// QuestionAnswer is one generated reverse-translation exercise.
// It lives only in session state for the duration of a review cycle.
type QuestionAnswer struct {
	// Question is the prompt shown to the learner, in their preferred languages.
	Question string `json:"question"`
	// Answer is the expected translation containing the target word.
	Answer string `json:"answer"`
	// Hints holds comma-separated translations of the surrounding vocabulary.
	Hints string `json:"hints"`
}

// HintList splits Hints on HintSeparator, trimming whitespace and
// dropping empty entries.
func (qa QuestionAnswer) HintList() []string {
	parts := strings.Split(qa.Hints, HintSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
