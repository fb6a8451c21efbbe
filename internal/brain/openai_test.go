package brain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lucamoretti/visage/internal/observability"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 1},
		{"hi", 1},
		{"12345678", 2},
		{strings.Repeat("a", 400), 100},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestTruncateHistory(t *testing.T) {
	long := strings.Repeat("x", 4000) // ~1000 tokens

	history := []Turn{
		{Role: "user", Content: long},
		{Role: "assistant", Content: "short answer"},
		{Role: "user", Content: "short question"},
	}

	got := TruncateHistory(history, 100)
	if len(got) != 2 {
		t.Fatalf("kept %d turns, want 2", len(got))
	}
	if got[0].Content != "short answer" || got[1].Content != "short question" {
		t.Fatalf("wrong turns kept: %+v", got)
	}

	if got := TruncateHistory(nil, 100); got != nil {
		t.Fatalf("nil history = %+v", got)
	}
	if got := TruncateHistory(history, 0); got != nil {
		t.Fatalf("zero budget = %+v", got)
	}
}

func TestCompleteSuccess(t *testing.T) {
	var gotPath string
	var gotReq chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Hello!"}},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	defer ts.Close()

	c, err := NewClient(ClientConfig{Endpoint: ts.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient error = %v", err)
	}

	history := []Turn{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "earlier reply"},
		{Role: "system", Content: "ignored role"},
	}
	reply := c.Complete(context.Background(), "hi", "gpt4o", history)

	if !reply.Success {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Content != "Hello!" || reply.TokensUsed != 15 {
		t.Fatalf("reply = %+v", reply)
	}
	if !strings.Contains(gotPath, "/openai/deployments/gpt-4o/") {
		t.Fatalf("request path = %q", gotPath)
	}
	// History minus the non-chat role, plus the new user turn.
	if len(gotReq.Messages) != 3 {
		t.Fatalf("sent %d messages, want 3", len(gotReq.Messages))
	}
	if gotReq.Messages[2].Content != "hi" {
		t.Fatalf("last message = %+v", gotReq.Messages[2])
	}
}

func TestCompleteUnknownModelFallsBack(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer ts.Close()

	c, _ := NewClient(ClientConfig{Endpoint: ts.URL, APIKey: "k"})
	reply := c.Complete(context.Background(), "hi", "gpt-9000", nil)

	if reply.Model != "gpt4o" {
		t.Fatalf("model = %q, want gpt4o fallback", reply.Model)
	}
	if !strings.Contains(gotPath, "gpt-4o") {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestCompleteFailureIsStructured(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limit exceeded"},
		})
	}))
	defer ts.Close()

	c, _ := NewClient(ClientConfig{Endpoint: ts.URL, APIKey: "k"})
	reply := c.Complete(context.Background(), "hi", "gpt4o", nil)

	if reply.Success {
		t.Fatal("Success = true, want false")
	}
	if !strings.Contains(reply.Error, "rate limit exceeded") {
		t.Fatalf("Error = %q", reply.Error)
	}
	if !strings.Contains(reply.Content, "I'm sorry") {
		t.Fatalf("Content = %q, want apologetic fallback", reply.Content)
	}
}

func TestCompleteFailureCountsEngineError(t *testing.T) {
	metrics := observability.NewMetrics("test_brain_engine_errors")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "backend exploded"},
		})
	}))
	defer ts.Close()

	c, _ := NewClient(ClientConfig{Endpoint: ts.URL, APIKey: "k", Metrics: metrics})
	reply := c.Complete(context.Background(), "hi", "gpt4o", nil)

	if reply.Success {
		t.Fatal("Success = true, want false")
	}
	got := testutil.ToFloat64(metrics.EngineErrors.WithLabelValues("brain", "500"))
	if got != 1 {
		t.Fatalf("engine error count = %v, want 1", got)
	}
}

func TestNewClientNotConfigured(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err != ErrNotConfigured {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
}
