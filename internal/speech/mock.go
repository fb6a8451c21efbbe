package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lucamoretti/visage/internal/avatar"
)

// MockEngine is a local fallback engine used when the speech cloud is not
// configured, and the scripted engine for tests.
type MockEngine struct {
	mu sync.Mutex

	// SynthesisErr, when set, fails every synthesis and Speak call.
	SynthesisErr error
	// TranscribeText is returned for every transcription; empty means ErrNoSpeech.
	TranscribeText string
	// TranscribeErr overrides TranscribeText when set.
	TranscribeErr error

	SpokenSSML []string
}

func NewMockEngine() *MockEngine {
	return &MockEngine{TranscribeText: "simulated voice input"}
}

func (m *MockEngine) SynthesizeAvatar(_ context.Context, ssml string, _ avatar.ResolvedConfig) (*avatar.SynthesisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SynthesisErr != nil {
		return nil, m.SynthesisErr
	}
	m.SpokenSSML = append(m.SpokenSSML, ssml)
	return &avatar.SynthesisResult{
		Video:    []byte("mock-video:" + ssml),
		Duration: time.Duration(len(ssml)) * 10 * time.Millisecond,
	}, nil
}

func (m *MockEngine) NewHandle(_ context.Context, voice string) (avatar.Handle, error) {
	if strings.TrimSpace(voice) == "" {
		return nil, ErrNotConfigured
	}
	return &mockHandle{engine: m, voice: voice}, nil
}

func (m *MockEngine) Transcribe(_ context.Context, audio []byte, _ string) (Transcription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TranscribeErr != nil {
		return Transcription{}, m.TranscribeErr
	}
	if len(audio) == 0 || m.TranscribeText == "" {
		return Transcription{}, ErrNoSpeech
	}
	return Transcription{Text: m.TranscribeText}, nil
}

func (m *MockEngine) RelayToken(_ context.Context) (ICEToken, error) {
	return ICEToken{
		URLs:       []string{"turn:relay.mock.invalid:3478"},
		Username:   "mock-user",
		Credential: "mock-credential",
	}, nil
}

type mockHandle struct {
	engine *MockEngine
	voice  string
	closed bool
	mu     sync.Mutex
}

func (h *mockHandle) Speak(ctx context.Context, ssml string) (*avatar.SynthesisResult, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, ErrNotConfigured
	}
	return h.engine.SynthesizeAvatar(ctx, ssml, avatar.ResolvedConfig{Voice: h.voice})
}

func (h *mockHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
