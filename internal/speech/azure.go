package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lucamoretti/visage/internal/avatar"
	"github.com/lucamoretti/visage/internal/observability"
	"github.com/lucamoretti/visage/internal/reliability"
)

// ClientConfig configures the speech cloud client. Key and Region are
// required; the base URLs exist so tests can point the client at a local
// server.
type ClientConfig struct {
	Key    string
	Region string

	TTSBaseURL string
	STTBaseURL string

	Timeout time.Duration

	// Metrics, when set, counts engine failures by operation outcome.
	Metrics *observability.Metrics
}

// Client talks to the speech cloud over plain HTTP.
type Client struct {
	cfg   ClientConfig
	httpc *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Key) == "" || strings.TrimSpace(cfg.Region) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.TTSBaseURL == "" {
		cfg.TTSBaseURL = fmt.Sprintf("https://%s.tts.speech.microsoft.com", cfg.Region)
	}
	if cfg.STTBaseURL == "" {
		cfg.STTBaseURL = fmt.Sprintf("https://%s.stt.speech.microsoft.com", cfg.Region)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, httpc: &http.Client{}}, nil
}

// EngineError is a structured failure from the speech engine.
type EngineError struct {
	Op        string
	Status    int
	Reason    string
	Retryable bool
}

func (e *EngineError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Reason)
}

type synthesisRequest struct {
	SSML        string                    `json:"ssml"`
	Character   string                    `json:"character"`
	Style       string                    `json:"style"`
	Background  avatar.ResolvedBackground `json:"background"`
	VideoFormat avatar.VideoFormat        `json:"videoFormat"`
}

// SynthesizeAvatar renders SSML into an avatar video clip in one call.
func (c *Client) SynthesizeAvatar(ctx context.Context, ssml string, cfg avatar.ResolvedConfig) (*avatar.SynthesisResult, error) {
	body, err := json.Marshal(synthesisRequest{
		SSML:        ssml,
		Character:   cfg.Character,
		Style:       cfg.Style,
		Background:  cfg.Background,
		VideoFormat: cfg.VideoFormat,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.TTSBaseURL, "/")+"/cognitiveservices/avatar/v1", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.recordFailure("timeout")
			return nil, &EngineError{Op: "avatar synthesis", Reason: "engine timed out", Retryable: true}
		}
		c.recordFailure("transport")
		return nil, fmt.Errorf("avatar synthesis request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, c.engineFailure("avatar synthesis", res)
	}

	video, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}

	return &avatar.SynthesisResult{
		Video:    video,
		Duration: durationFromHeader(res.Header, ssml),
	}, nil
}

// NewHandle binds a realtime synthesis handle to the resolved voice.
func (c *Client) NewHandle(_ context.Context, voice string) (avatar.Handle, error) {
	if strings.TrimSpace(voice) == "" {
		return nil, fmt.Errorf("voice is required")
	}
	return &restHandle{client: c, voice: voice}, nil
}

// restHandle speaks over the one-shot REST surface. The binding is stateless
// on the wire, so Close has nothing to release.
type restHandle struct {
	client *Client
	voice  string
}

func (h *restHandle) Speak(ctx context.Context, ssml string) (*avatar.SynthesisResult, error) {
	return h.client.SynthesizeAvatar(ctx, ssml, avatar.ResolvedConfig{Voice: h.voice})
}

func (h *restHandle) Close() error { return nil }

type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
}

// Transcribe runs one-shot recognition on an opaque audio payload. format is
// the payload content type; empty defaults to Opus-in-Ogg, which is what
// browser recorders send.
func (c *Client) Transcribe(ctx context.Context, audio []byte, format string) (Transcription, error) {
	if format == "" {
		format = "audio/ogg; codecs=opus"
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.STTBaseURL, "/")+"/speech/recognition/conversation/cognitiveservices/v1?language=en-US",
		bytes.NewReader(audio))
	if err != nil {
		return Transcription{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
	req.Header.Set("Content-Type", format)

	res, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.recordFailure("timeout")
			return Transcription{}, &EngineError{Op: "transcription", Reason: "engine timed out", Retryable: true}
		}
		c.recordFailure("transport")
		return Transcription{}, fmt.Errorf("transcription request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Transcription{}, c.engineFailure("transcription", res)
	}

	var parsed recognitionResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Transcription{}, fmt.Errorf("decode recognition response: %w", err)
	}

	switch parsed.RecognitionStatus {
	case "Success":
		return Transcription{Text: parsed.DisplayText}, nil
	case "NoMatch":
		return Transcription{}, ErrNoSpeech
	default:
		c.recordFailure("canceled")
		return Transcription{}, &EngineError{
			Op:     "transcription",
			Reason: "recognition canceled: " + parsed.RecognitionStatus,
		}
	}
}

type relayTokenResponse struct {
	URLs     []string `json:"Urls"`
	Username string   `json:"Username"`
	Password string   `json:"Password"`
}

// RelayToken fetches ephemeral ICE relay credentials for the realtime
// transport negotiation.
func (c *Client) RelayToken(ctx context.Context) (ICEToken, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.TTSBaseURL, "/")+"/cognitiveservices/avatar/relay/token/v1", nil)
	if err != nil {
		return ICEToken{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)

	res, err := c.httpc.Do(req)
	if err != nil {
		return ICEToken{}, fmt.Errorf("relay token request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return ICEToken{}, c.engineFailure("relay token", res)
	}

	var parsed relayTokenResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return ICEToken{}, fmt.Errorf("decode relay token: %w", err)
	}
	return ICEToken{URLs: parsed.URLs, Username: parsed.Username, Credential: parsed.Password}, nil
}

// VoiceInfo describes one engine voice as reported by the voices listing.
type VoiceInfo struct {
	Name        string `json:"Name"`
	DisplayName string `json:"DisplayName"`
	Locale      string `json:"Locale"`
	Gender      string `json:"Gender"`
}

// ListVoices fetches the engine's full voice inventory.
func (c *Client) ListVoices(ctx context.Context) ([]VoiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.TTSBaseURL, "/")+"/cognitiveservices/voices/list", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, c.engineFailure("list voices", res)
	}

	var voices []VoiceInfo
	if err := json.NewDecoder(res.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	return voices, nil
}

func (c *Client) engineFailure(op string, res *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	reason := strings.TrimSpace(string(detail))
	if reason == "" {
		reason = res.Status
	}
	c.recordFailure(strconv.Itoa(res.StatusCode))
	return &EngineError{
		Op:        op,
		Status:    res.StatusCode,
		Reason:    reason,
		Retryable: reliability.IsRetryableHTTPStatus(res.StatusCode),
	}
}

func (c *Client) recordFailure(code string) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.EngineErrors.WithLabelValues("speech", code).Inc()
	}
}

func durationFromHeader(h http.Header, ssml string) time.Duration {
	if v := h.Get("X-Synthesis-Duration-Ms"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	// Rough estimate when the engine omits the header.
	return time.Duration(len(ssml)) * 10 * time.Millisecond
}
