package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lucamoretti/visage/internal/avatar"
	"github.com/lucamoretti/visage/internal/observability"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := NewClient(ClientConfig{
		Key:        "test-key",
		Region:     "westeurope",
		TTSBaseURL: ts.URL,
		STTBaseURL: ts.URL,
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient error = %v", err)
	}
	return c, ts
}

func TestNewClientRequiresCredentials(t *testing.T) {
	cases := []ClientConfig{
		{},
		{Key: "k"},
		{Region: "westeurope"},
		{Key: "   ", Region: "westeurope"},
	}
	for _, cfg := range cases {
		if _, err := NewClient(cfg); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("NewClient(%+v) error = %v, want ErrNotConfigured", cfg, err)
		}
	}
}

func TestSynthesizeAvatar(t *testing.T) {
	var gotPath, gotKey string
	var gotReq map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("X-Synthesis-Duration-Ms", "2500")
		_, _ = w.Write([]byte("video-bytes"))
	}))

	cfg := avatar.ResolvedConfig{
		Character: "lisa",
		Style:     "casual-sitting",
		Voice:     "en-US-JennyNeural",
	}
	res, err := c.SynthesizeAvatar(context.Background(), "<speak>hi</speak>", cfg)
	if err != nil {
		t.Fatalf("SynthesizeAvatar error = %v", err)
	}
	if gotPath != "/cognitiveservices/avatar/v1" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("subscription key = %q", gotKey)
	}
	if gotReq["character"] != "lisa" || gotReq["ssml"] != "<speak>hi</speak>" {
		t.Fatalf("request body = %+v", gotReq)
	}
	if string(res.Video) != "video-bytes" {
		t.Fatalf("video = %q", res.Video)
	}
	if res.Duration != 2500*time.Millisecond {
		t.Fatalf("duration = %v", res.Duration)
	}
}

func TestSynthesizeAvatarFailureIsClassified(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))

	_, err := c.SynthesizeAvatar(context.Background(), "<speak/>", avatar.ResolvedConfig{})
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("error = %v, want *EngineError", err)
	}
	if engineErr.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", engineErr.Status)
	}
	if !engineErr.Retryable {
		t.Fatal("429 should be retryable")
	}
	if !strings.Contains(engineErr.Reason, "throttled") {
		t.Fatalf("reason = %q", engineErr.Reason)
	}
}

func TestEngineErrorsCounted(t *testing.T) {
	metrics := observability.NewMetrics("test_speech_engine_errors")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(ClientConfig{
		Key:        "test-key",
		Region:     "westeurope",
		TTSBaseURL: ts.URL,
		STTBaseURL: ts.URL,
		Metrics:    metrics,
	})
	if err != nil {
		t.Fatalf("NewClient error = %v", err)
	}

	if _, err := c.SynthesizeAvatar(context.Background(), "<speak/>", avatar.ResolvedConfig{}); err == nil {
		t.Fatal("SynthesizeAvatar succeeded, want error")
	}
	if _, err := c.Transcribe(context.Background(), []byte("audio"), ""); err == nil {
		t.Fatal("Transcribe succeeded, want error")
	}

	got := testutil.ToFloat64(metrics.EngineErrors.WithLabelValues("speech", "503"))
	if got != 2 {
		t.Fatalf("engine error count = %v, want 2", got)
	}
}

func TestSynthesizeAvatarDurationFallback(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("v"))
	}))

	ssml := "<speak>hello</speak>"
	res, err := c.SynthesizeAvatar(context.Background(), ssml, avatar.ResolvedConfig{})
	if err != nil {
		t.Fatalf("SynthesizeAvatar error = %v", err)
	}
	want := time.Duration(len(ssml)) * 10 * time.Millisecond
	if res.Duration != want {
		t.Fatalf("duration = %v, want %v estimate", res.Duration, want)
	}
}

func TestTranscribe(t *testing.T) {
	cases := []struct {
		name     string
		response recognitionResponse
		wantText string
		wantErr  error
	}{
		{
			name:     "success",
			response: recognitionResponse{RecognitionStatus: "Success", DisplayText: "hello world"},
			wantText: "hello world",
		},
		{
			name:     "no match",
			response: recognitionResponse{RecognitionStatus: "NoMatch"},
			wantErr:  ErrNoSpeech,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotContentType string
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotContentType = r.Header.Get("Content-Type")
				_ = json.NewEncoder(w).Encode(tc.response)
			}))

			tr, err := c.Transcribe(context.Background(), []byte("audio"), "")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transcribe error = %v", err)
			}
			if tr.Text != tc.wantText {
				t.Fatalf("text = %q", tr.Text)
			}
			if gotContentType != "audio/ogg; codecs=opus" {
				t.Fatalf("default content type = %q", gotContentType)
			}
		})
	}
}

func TestTranscribeCanceledStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(recognitionResponse{RecognitionStatus: "InitialSilenceTimeout"})
	}))

	_, err := c.Transcribe(context.Background(), []byte("audio"), "audio/wav")
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("error = %v, want *EngineError", err)
	}
	if !strings.Contains(engineErr.Reason, "InitialSilenceTimeout") {
		t.Fatalf("reason = %q", engineErr.Reason)
	}
}

func TestRelayToken(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cognitiveservices/avatar/relay/token/v1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(relayTokenResponse{
			URLs:     []string{"turn:relay.example:3478"},
			Username: "u",
			Password: "p",
		})
	}))

	token, err := c.RelayToken(context.Background())
	if err != nil {
		t.Fatalf("RelayToken error = %v", err)
	}
	if len(token.URLs) != 1 || token.Username != "u" || token.Credential != "p" {
		t.Fatalf("token = %+v", token)
	}
}

func TestListVoices(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]VoiceInfo{
			{Name: "en-US-JennyNeural", DisplayName: "Jenny", Locale: "en-US", Gender: "Female"},
		})
	}))

	voices, err := c.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices error = %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "en-US-JennyNeural" {
		t.Fatalf("voices = %+v", voices)
	}
}

func TestMockEngineTranscribe(t *testing.T) {
	m := NewMockEngine()

	tr, err := m.Transcribe(context.Background(), []byte("audio"), "")
	if err != nil || tr.Text != "simulated voice input" {
		t.Fatalf("Transcribe = %+v, %v", tr, err)
	}

	m.TranscribeText = ""
	if _, err := m.Transcribe(context.Background(), []byte("audio"), ""); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("error = %v, want ErrNoSpeech", err)
	}
}

func TestMockEngineHandleLifecycle(t *testing.T) {
	m := NewMockEngine()
	h, err := m.NewHandle(context.Background(), "en-US-JennyNeural")
	if err != nil {
		t.Fatalf("NewHandle error = %v", err)
	}

	if _, err := h.Speak(context.Background(), "<speak>hi</speak>"); err != nil {
		t.Fatalf("Speak error = %v", err)
	}
	if len(m.SpokenSSML) != 1 {
		t.Fatalf("spoken count = %d", len(m.SpokenSSML))
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if _, err := h.Speak(context.Background(), "<speak>again</speak>"); err == nil {
		t.Fatal("Speak after Close succeeded")
	}
}
