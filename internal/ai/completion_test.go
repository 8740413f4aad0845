package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 0,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": %q}}]
	}`, content)
}

func TestChatService_Answer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody("The blue one costs 20 euros."))
	}))
	defer srv.Close()

	svc := NewChatService("test-key", srv.URL, "gpt-4o-mini", nil)

	answer, err := svc.Answer(context.Background(), "You are a friendly host.", "how much is the blue one?")
	require.NoError(t, err)
	assert.Equal(t, "The blue one costs 20 euros.", answer)
}

func TestChatService_CollapsesIdenticalInFlightQuestions(t *testing.T) {
	var hits atomic.Int32
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody("shared answer"))
	}))
	defer srv.Close()

	svc := NewChatService("k", srv.URL, "gpt-4o-mini", nil)

	var wg sync.WaitGroup
	answers := make([]string, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		answers[0], _ = svc.Answer(context.Background(), "prompt", "same question?")
	}()
	<-arrived // first request is in flight before the second starts

	wg.Add(1)
	go func() {
		defer wg.Done()
		answers[1], _ = svc.Answer(context.Background(), "prompt", "same question?")
	}()

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load(), "identical in-flight questions must share one request")
	assert.Equal(t, "shared answer", answers[0])
	assert.Equal(t, "shared answer", answers[1])
}

func TestChatService_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// 400s are not retried by the client, keeping the hit count exact.
		http.Error(w, `{"error": {"message": "bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewChatService("k", srv.URL, "gpt-4o-mini", nil)

	for i := 0; i < 5; i++ {
		_, err := svc.Answer(context.Background(), "prompt", fmt.Sprintf("question %d?", i))
		require.Error(t, err)
	}
	assert.Equal(t, int32(5), hits.Load())

	// Breaker is open now: the next call fails fast without a request.
	_, err := svc.Answer(context.Background(), "prompt", "one more?")
	require.Error(t, err)
	assert.Equal(t, int32(5), hits.Load())
}
