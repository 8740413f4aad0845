// Package respond turns gated events into spoken responses: a per-session
// single-flight queue drains into the generation pipeline (template, chat
// completion, speech synthesis) and paces delivery.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
	"github.com/vanhieptech/sigma-sub000/internal/metrics"
)

// fallbackDuration is assumed when synthesis fails or reports no duration,
// so pacing still leaves room for the client to play or display the text.
const fallbackDuration = 3 * time.Second

// Generator runs the generation pipeline for one request. Failures of the
// external services are masked with degraded output, never returned.
type Generator struct {
	completion domain.CompletionService
	speech     domain.SpeechService
	log        *slog.Logger
}

func NewGenerator(completion domain.CompletionService, speech domain.SpeechService, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{completion: completion, speech: speech, log: log}
}

// Generate produces the response for req using the session's personality and
// catalog. It always returns a usable response: completion failures fall
// back to an apology line, synthesis failures to text-only output.
func (g *Generator) Generate(ctx context.Context, req domain.QueuedRequest, personality domain.Personality, catalog []domain.Product) domain.GeneratedResponse {
	start := time.Now()
	defer func() {
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	tmpl := g.template(personality, req.Kind)

	data := req.Data
	if req.Kind == domain.RespondQuestion {
		answer, err := g.completion.Answer(ctx, g.systemPrompt(personality, catalog), req.Data["comment"])
		if err != nil {
			metrics.GenerationFailures.WithLabelValues("completion").Inc()
			g.log.Warn("Completion failed, using apology", "error", err)
			answer = apologyLine
		}
		data = cloneWith(req.Data, "answer", strings.TrimSpace(answer))
	}

	text := RenderTemplate(tmpl, data)

	sp, err := g.speech.Synthesize(ctx, text, personality.Voice)
	if err != nil {
		metrics.GenerationFailures.WithLabelValues("speech").Inc()
		g.log.Warn("Speech synthesis failed, delivering text only", "error", err)
		return domain.GeneratedResponse{Text: text, Duration: fallbackDuration}
	}

	duration := sp.Duration
	if duration <= 0 {
		duration = fallbackDuration
	}
	return domain.GeneratedResponse{Text: text, AudioURL: sp.AudioURL, Duration: duration}
}

func (g *Generator) template(p domain.Personality, kind domain.ResponseKind) string {
	if tmpl, ok := p.Templates[kind]; ok && tmpl != "" {
		return tmpl
	}
	return DefaultPersonality().Templates[kind]
}

// systemPrompt extends the personality prompt with a catalog digest so
// commerce questions can be answered from the active product list.
func (g *Generator) systemPrompt(p domain.Personality, catalog []domain.Product) string {
	prompt := p.SystemPrompt
	if prompt == "" {
		prompt = DefaultPersonality().SystemPrompt
	}
	if len(catalog) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nCurrent products:\n")
	for _, prod := range catalog {
		fmt.Fprintf(&b, "- %s: %.2f %s", prod.Name, prod.Price, prod.Currency)
		if prod.Stock > 0 {
			fmt.Fprintf(&b, " (%d in stock)", prod.Stock)
		}
		if prod.Description != "" {
			b.WriteString(". ")
			b.WriteString(prod.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func cloneWith(data map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[key] = value
	return out
}
