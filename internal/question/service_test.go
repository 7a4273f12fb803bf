package question

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeLLM struct {
	jsonOut    string
	jsonErr    error
	text       string
	textErr    error
	jsonPrompt string
	textPrompt string
	schemaName string
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt, schemaName string, schema map[string]any, out any) error {
	f.jsonPrompt = prompt
	f.schemaName = schemaName
	if f.jsonErr != nil {
		return f.jsonErr
	}
	return json.Unmarshal([]byte(f.jsonOut), out)
}

func (f *fakeLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.textPrompt = prompt
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.text, nil
}

type fakeCollocations struct {
	collocation string
	err         error
}

func (f *fakeCollocations) RandomCollocation(word string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.collocation, nil
}

func newTestService(llm *fakeLLM, colls *fakeCollocations) *Service {
	return NewService(llm, colls, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerateQuestion(t *testing.T) {
	llm := &fakeLLM{jsonOut: `{
		"question": "Please attend the meeting tomorrow.",
		"answer": "明日の会議に出席してください。",
		"hints": "明日(あした), 会議(かいぎ), ください"
	}`}
	colls := &fakeCollocations{collocation: "会議に出席する"}
	s := newTestService(llm, colls)

	qa, err := s.GenerateQuestion(context.Background(), "出席する", "N3", []string{"English"})
	if err != nil {
		t.Fatalf("GenerateQuestion: %v", err)
	}
	if qa.Answer != "明日の会議に出席してください。" {
		t.Errorf("Answer = %q", qa.Answer)
	}
	if len(qa.HintList()) != 3 {
		t.Errorf("HintList = %v, want 3 hints", qa.HintList())
	}

	// The prompt carries the word, the level, the collocation seed and
	// the target language.
	for _, want := range []string{"出席する", "N3", "会議に出席する", "English"} {
		if !strings.Contains(llm.jsonPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if llm.schemaName != "reverse_translation_question" {
		t.Errorf("schema name = %q", llm.schemaName)
	}
}

func TestGenerateQuestionCollocationFailure(t *testing.T) {
	llm := &fakeLLM{}
	colls := &fakeCollocations{err: errors.New("no payload file")}
	s := newTestService(llm, colls)

	if _, err := s.GenerateQuestion(context.Background(), "word", "N3", nil); err == nil {
		t.Error("GenerateQuestion should surface the collocation failure")
	}
	if llm.jsonPrompt != "" {
		t.Error("no LLM call should happen without a collocation")
	}
}

func TestGenerateQuestionRejectsEmptyFields(t *testing.T) {
	llm := &fakeLLM{jsonOut: `{"question": "", "answer": "", "hints": ""}`}
	colls := &fakeCollocations{collocation: "c"}
	s := newTestService(llm, colls)

	if _, err := s.GenerateQuestion(context.Background(), "word", "N3", nil); err == nil {
		t.Error("GenerateQuestion should reject an empty question or answer")
	}
}

func TestGradeAnswer(t *testing.T) {
	llm := &fakeLLM{text: "✅ Good use of the word.\n### Overall Score: 9/10 🎉"}
	s := newTestService(llm, &fakeCollocations{})

	review, err := s.GradeAnswer(context.Background(), "出席する", "会議に出席してください。", "Please attend the meeting.", "会議に出席します。", []string{"English"})
	if err != nil {
		t.Fatalf("GradeAnswer: %v", err)
	}
	if review != llm.text {
		t.Errorf("review = %q", review)
	}
	for _, want := range []string{"出席する", "会議に出席してください。", "会議に出席します。", "Please attend the meeting.", "English"} {
		if !strings.Contains(llm.textPrompt, want) {
			t.Errorf("grading prompt missing %q", want)
		}
	}
}

func TestGradeAnswerEmptyReview(t *testing.T) {
	llm := &fakeLLM{text: ""}
	s := newTestService(llm, &fakeCollocations{})

	if _, err := s.GradeAnswer(context.Background(), "w", "a", "q", "x", nil); err == nil {
		t.Error("GradeAnswer should reject an empty review")
	}
}

func TestLanguageClause(t *testing.T) {
	testCases := []struct {
		langs []string
		want  string
	}{
		{nil, "English"},
		{[]string{"Persian"}, "Persian"},
		{[]string{"English", "Persian"}, "English and Persian"},
		{[]string{"English", "Persian", "French"}, "English and Persian"},
	}
	for _, tc := range testCases {
		if got := languageClause(tc.langs); got != tc.want {
			t.Errorf("languageClause(%v) = %q, want %q", tc.langs, got, tc.want)
		}
	}
}
