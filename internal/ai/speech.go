package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
)

const (
	speechTimeout = 30 * time.Second

	// wordsPerSecond approximates speaking pace at normal speed.
	wordsPerSecond = 2.5
)

// SpeechSynthesizer calls the audio/speech endpoint and caches the resulting
// mp3 files on disk. Files are served back to clients under /audio/.
type SpeechSynthesizer struct {
	apiKey   string
	endpoint string
	model    string
	cacheDir string
	client   *http.Client
	log      *slog.Logger
}

func NewSpeechSynthesizer(apiKey, baseURL, model, cacheDir string, log *slog.Logger) (*SpeechSynthesizer, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio cache dir %s: %w", cacheDir, err)
	}
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &SpeechSynthesizer{
		apiKey:   apiKey,
		endpoint: base + "/audio/speech",
		model:    model,
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: speechTimeout},
		log:      log,
	}, nil
}

type speechRequest struct {
	Model string  `json:"model"`
	Input string  `json:"input"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed,omitempty"`
}

// Synthesize renders text as speech and returns the audio URL with an
// estimated playback duration.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string, voice domain.VoiceParams) (domain.Speech, error) {
	model := voice.Model
	if model == "" {
		model = s.model
	}
	voiceID := voice.VoiceID
	if voiceID == "" {
		voiceID = "alloy"
	}

	body, err := json.Marshal(speechRequest{
		Model: model,
		Input: text,
		Voice: voiceID,
		Speed: voice.Speed,
	})
	if err != nil {
		return domain.Speech{}, fmt.Errorf("failed to encode speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Speech{}, fmt.Errorf("failed to build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Speech{}, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Speech{}, fmt.Errorf("speech API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	name := uuid.NewString() + ".mp3"
	path := filepath.Join(s.cacheDir, name)
	f, err := os.Create(path)
	if err != nil {
		return domain.Speech{}, fmt.Errorf("failed to create audio file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return domain.Speech{}, fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.Speech{}, fmt.Errorf("failed to close audio file: %w", err)
	}

	return domain.Speech{
		AudioURL: "/audio/" + name,
		Duration: estimateDuration(text, voice.Speed),
	}, nil
}

// estimateDuration approximates playback length from word count so the
// response queue can pace deliveries without decoding the mp3.
func estimateDuration(text string, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	words := len(strings.Fields(text))
	secs := float64(words) / (wordsPerSecond * speed)
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs * float64(time.Second))
}
