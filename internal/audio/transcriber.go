// Package audio turns recorded answers into text through a speech-to-text
// collaborator, enforcing a local size ceiling before any network call.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultMaxSizeKB is the hard limit on recorded answers. Answers are a
// single spoken sentence; anything bigger is a misrecording.
const DefaultMaxSizeKB = 1000

// Sentinel errors. Check with errors.Is.
var (
	// ErrTooLarge is returned before any network call when the payload
	// exceeds the configured ceiling.
	ErrTooLarge = errors.New("audio: recording exceeds size limit")

	// ErrEmptyResult is returned when transcription produced no text.
	ErrEmptyResult = errors.New("audio: transcription returned empty result")
)

// speechToText is the slice of the OpenAI client this package needs.
type speechToText interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// Transcriber validates and transcribes recorded answers.
type Transcriber struct {
	stt       speechToText
	maxSizeKB int
	language  string
	log       *slog.Logger
}

// NewTranscriber creates a Transcriber. maxSizeKB <= 0 selects
// DefaultMaxSizeKB; an empty language defaults to "ja".
func NewTranscriber(stt speechToText, maxSizeKB int, language string, log *slog.Logger) *Transcriber {
	if maxSizeKB <= 0 {
		maxSizeKB = DefaultMaxSizeKB
	}
	if language == "" {
		language = "ja"
	}
	return &Transcriber{
		stt:       stt,
		maxSizeKB: maxSizeKB,
		language:  language,
		log:       log.With("component", "audio"),
	}
}

// Transcribe converts the recording to text. Oversized payloads fail locally
// with ErrTooLarge; an empty transcription fails with ErrEmptyResult.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	sizeKB := float64(len(audio)) / 1024
	if sizeKB > float64(t.maxSizeKB) {
		return "", fmt.Errorf("%w: %.2fKB, limit %dKB", ErrTooLarge, sizeKB, t.maxSizeKB)
	}

	text, err := t.stt.Transcribe(ctx, audio, t.language)
	if err != nil {
		return "", fmt.Errorf("audio: transcription failed: %w", err)
	}
	if text == "" {
		return "", ErrEmptyResult
	}

	t.log.Info("audio transcribed", "size_kb", fmt.Sprintf("%.1f", sizeKB))
	return text, nil
}
