package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
)

func TestSpeechSynthesizer_WritesAudioFile(t *testing.T) {
	audio := []byte("ID3fake-mp3-bytes")
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(audio)
	}))
	defer srv.Close()

	dir := t.TempDir()
	synth, err := NewSpeechSynthesizer("test-key", srv.URL, "tts-1", dir, nil)
	require.NoError(t, err)

	voice := domain.VoiceParams{VoiceID: "nova", Model: "tts-1-hd", Speed: 1.2}
	sp, err := synth.Synthesize(context.Background(), "hello there viewer", voice)
	require.NoError(t, err)

	assert.Equal(t, "tts-1-hd", got.Model)
	assert.Equal(t, "nova", got.Voice)
	assert.Equal(t, "hello there viewer", got.Input)
	assert.InDelta(t, 1.2, got.Speed, 0.001)

	require.True(t, strings.HasPrefix(sp.AudioURL, "/audio/"))
	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(sp.AudioURL, "/audio/")))
	require.NoError(t, err)
	assert.Equal(t, audio, data)
	assert.GreaterOrEqual(t, sp.Duration, time.Second)
}

func TestSpeechSynthesizer_DefaultsVoiceAndModel(t *testing.T) {
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	synth, err := NewSpeechSynthesizer("k", srv.URL, "tts-1", t.TempDir(), nil)
	require.NoError(t, err)

	_, err = synth.Synthesize(context.Background(), "hi", domain.VoiceParams{})
	require.NoError(t, err)
	assert.Equal(t, "tts-1", got.Model)
	assert.Equal(t, "alloy", got.Voice)
}

func TestSpeechSynthesizer_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid voice"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	dir := t.TempDir()
	synth, err := NewSpeechSynthesizer("k", srv.URL, "tts-1", dir, nil)
	require.NoError(t, err)

	_, err = synth.Synthesize(context.Background(), "hi", domain.VoiceParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no audio file may be left behind on failure")
}

func TestEstimateDuration(t *testing.T) {
	// 25 words at 2.5 words/second is 10 seconds.
	text := strings.Repeat("word ", 25)
	assert.Equal(t, 10*time.Second, estimateDuration(text, 1))

	// Double speed halves the estimate.
	assert.Equal(t, 5*time.Second, estimateDuration(text, 2))

	// Very short text is floored at one second.
	assert.Equal(t, time.Second, estimateDuration("hi", 1))
	assert.Equal(t, time.Second, estimateDuration("", 1))
}
