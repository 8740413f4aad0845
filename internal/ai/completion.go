// Package ai implements the external-service clients behind the generation
// pipeline: chat completions for question answering and speech synthesis
// for audio output.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

const completionTimeout = 30 * time.Second

// ChatService answers viewer questions via the chat completions API. A
// circuit breaker stops hammering the API while it is down, and identical
// in-flight questions are collapsed into one request.
type ChatService struct {
	client  openaigo.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
	log     *slog.Logger
}

func NewChatService(apiKey, baseURL, model string, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(2),
		option.WithRequestTimeout(completionTimeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "chat_completions",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &ChatService{
		client:  openaigo.NewClient(opts...),
		model:   model,
		breaker: breaker,
		log:     log,
	}
}

// Answer returns a short reply to question, speaking in the role described
// by systemPrompt.
func (s *ChatService) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	key := systemPrompt + "\x00" + question
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.breaker.Execute(func() (interface{}, error) {
			return s.complete(ctx, systemPrompt, question)
		})
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *ChatService) complete(ctx context.Context, systemPrompt, question string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(s.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(systemPrompt),
			openaigo.UserMessage(question),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
