package domain

import (
	"context"
	"time"
)

// CompletionService answers free-text questions on behalf of the host.
type CompletionService interface {
	// Answer returns a short plain-text reply to the question, speaking in
	// the role described by systemPrompt.
	Answer(ctx context.Context, systemPrompt, question string) (string, error)
}

// Speech is the result of synthesizing one response.
type Speech struct {
	AudioURL string
	Duration time.Duration
}

// SpeechService turns response text into playable audio.
type SpeechService interface {
	Synthesize(ctx context.Context, text string, voice VoiceParams) (Speech, error)
}
