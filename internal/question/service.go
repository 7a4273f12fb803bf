// Package question generates reverse-translation exercises for vocabulary
// cards and grades the learner's attempts, both through an LLM.
package question

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kioku-app/kioku/internal/domain"
)

// llm is the slice of the OpenAI client this service needs.
type llm interface {
	GenerateJSON(ctx context.Context, prompt, schemaName string, schema map[string]any, out any) error
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// CollocationSource supplies a usage example for a word, used to seed
// question generation with realistic context.
type CollocationSource interface {
	RandomCollocation(word string) (string, error)
}

// Service generates and grades reverse-translation questions.
type Service struct {
	llm     llm
	content CollocationSource
	log     *slog.Logger
}

// NewService creates a question Service.
func NewService(client llm, content CollocationSource, log *slog.Logger) *Service {
	return &Service{
		llm:     client,
		content: content,
		log:     log.With("component", "question"),
	}
}

// questionSchema is the structured-output schema for generated questions.
var questionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"question": map[string]any{"type": "string"},
		"answer":   map[string]any{"type": "string"},
		"hints":    map[string]any{"type": "string"},
	},
	"required":             []string{"question", "answer", "hints"},
	"additionalProperties": false,
}

// languageClause joins at most two target languages for prompt text,
// e.g. "English and Persian".
func languageClause(targetLanguages []string) string {
	langs := targetLanguages
	if len(langs) == 0 {
		langs = []string{"English"}
	}
	if len(langs) > 2 {
		langs = langs[:2]
	}
	return strings.Join(langs, " and ")
}

// GenerateQuestion produces a reverse-translation question for the word at
// the given proficiency level. The returned answer is a sentence containing
// the word; the question is its translation into the target languages.
func (s *Service) GenerateQuestion(ctx context.Context, word, level string, targetLanguages []string) (domain.QuestionAnswer, error) {
	collocation, err := s.content.RandomCollocation(word)
	if err != nil {
		return domain.QuestionAnswer{}, fmt.Errorf("question: fetch collocation for %q: %w", word, err)
	}

	langs := languageClause(targetLanguages)
	prompt := fmt.Sprintf(`### Role
You are a helpful assistant that creates Japanese language flashcard questions.
You will generate a reverse translation question for the given Japanese word.

### Steps

1. **Create a Sentence as Answer**

   * Generate a short, natural daily-life sentence at %[2]s level using '%[1]s'. The sentence should look like a part of a conversation or a common statement.
   * You may refer to '%[3]s' for context, but do **not** copy it directly. Randomly modify details (e.g., time, place, subject) to create a new sentence.
   * Do not replace the '%[1]s' with anything else; Make sure it exists in the sentence.
   * Use only %[2]s-appropriate vocabulary besides '%[1]s'.
   * Consider this as the 'Answer' field in the output.

2. **Translate and Verify as Question**

   * Provide an accurate, literal translation of the generated 'Answer' in %[4]s.
   * Consider the translation as the 'Question' field in the output.

3. **Hints**

   * Except '%[1]s' itself and easy vocabularies, include translations (in %[4]s) and readings of the other words in the generated 'Answer'.
   * Separate hints with commas only.
   * Format kanji with readings: e.g., 参加(さんか)する, 賢(かしこ)い.
   * Double check to remove '%[1]s' from hints.

### Constraints
* Make sure the 'Answer' contains '%[1]s' or its conjugated forms.
* Exclude '%[1]s' from hints.
* The 'Answer' is a Japanese sentence; the 'Question' is in %[4]s.
* Ensure all kanji have hiragana readings immediately after them.
`, word, level, collocation, langs)

	var qa domain.QuestionAnswer
	if err := s.llm.GenerateJSON(ctx, prompt, "reverse_translation_question", questionSchema, &qa); err != nil {
		return domain.QuestionAnswer{}, fmt.Errorf("question: generate for %q: %w", word, err)
	}
	if qa.Question == "" || qa.Answer == "" {
		return domain.QuestionAnswer{}, fmt.Errorf("question: empty question or answer generated for %q", word)
	}

	s.log.Info("question generated", "word", word, "level", level)
	return qa, nil
}

// GradeAnswer reviews the learner's attempt against the expected answer and
// returns a markdown review ending in a 0-10 score.
func (s *Service) GradeAnswer(ctx context.Context, word, correctAnswer, sourceQuestion, learnerAnswer string, targetLanguages []string) (string, error) {
	langs := languageClause(targetLanguages)
	prompt := fmt.Sprintf(`You are a helpful Japanese teacher reviewing a student's answer. Give very short, constructive feedback. The main goal is checking use of '%[1]s'. Reply in %[5]s.
If the student didn't answer, explain the correct answer briefly.

References:
- Correct answer: '%[2]s' (ignore readings in parentheses)
- Student answer: '%[4]s'
- Source sentence (translate fairly): '%[3]s'

Scoring (apply exactly):
1) score = 0
2) If '%[1]s' appears in any valid form (kanji/kana/reading/conjugation): +10
3) If meaning does not match the correct answer: -1 and briefly explain why
4) For each grammar mistake: -1; give a correction + brief reason
   * Ignore minor politeness/verb-form differences (e.g., する/します, です/だ) if meaning is preserved
5) Clamp score to 0-10

Output:
- Review: ultra-brief, one sentence per line, each line begins with an emoji, no headings
- Then a simple Markdown table listing each +/- with its reason (one row per item)
- End with: '### Overall Score: [score]/10' + an emoji

Before outputting, verify you followed the scoring rules.
`, word, correctAnswer, sourceQuestion, learnerAnswer, langs)

	review, err := s.llm.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("question: grade answer for %q: %w", word, err)
	}
	if review == "" {
		return "", fmt.Errorf("question: empty review generated for %q", word)
	}

	s.log.Info("answer graded", "word", word)
	return review, nil
}
