// Package brain adapts the hosted chat-completion service: model selection,
// conversation-history trimming and a reply shape that never leaks
// exceptions to the caller.
package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lucamoretti/visage/internal/observability"
)

// ErrNotConfigured means the completion endpoint or key is absent.
var ErrNotConfigured = errors.New("completion service not configured")

const (
	DefaultModel = "gpt4o"

	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
	historyWindow      = 20
)

// Turn is one prior conversation message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the structured completion outcome. Failures carry an apologetic
// Content so the avatar still has something to say.
type Reply struct {
	Content          string `json:"content"`
	Model            string `json:"model_used"`
	Deployment       string `json:"deployment_used"`
	TokensUsed       int    `json:"tokens_used"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
}

// ClientConfig configures the completion client. Deployments maps public
// model names to hosted deployment ids.
type ClientConfig struct {
	Endpoint    string
	APIKey      string
	APIVersion  string
	Deployments map[string]string
	Timeout     time.Duration

	// Metrics, when set, counts completion failures by outcome.
	Metrics *observability.Metrics
}

type Client struct {
	cfg   ClientConfig
	httpc *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-12-01-preview"
	}
	if len(cfg.Deployments) == 0 {
		cfg.Deployments = map[string]string{
			"gpt4o":   "gpt-4o",
			"o3-mini": "o3-mini",
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, httpc: &http.Client{}}, nil
}

// Models lists the selectable model names in stable order.
func (c *Client) Models() []string {
	names := make([]string, 0, len(c.cfg.Deployments))
	for _, n := range []string{"gpt4o", "o3-mini"} {
		if _, ok := c.cfg.Deployments[n]; ok {
			names = append(names, n)
		}
	}
	for n := range c.cfg.Deployments {
		if n != "gpt4o" && n != "o3-mini" {
			names = append(names, n)
		}
	}
	return names
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the user input plus recent history to the selected model.
// Unknown models fall back to the default; failures come back inside the
// Reply instead of as an error.
func (c *Client) Complete(ctx context.Context, userInput, model string, history []Turn) Reply {
	if _, ok := c.cfg.Deployments[model]; !ok {
		model = DefaultModel
	}
	deployment := c.cfg.Deployments[model]

	messages := make([]chatMessage, 0, historyWindow+1)
	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	for _, t := range recent {
		if t.Role != "user" && t.Role != "assistant" {
			continue
		}
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userInput})

	reply, err := c.complete(ctx, deployment, messages)
	if err != nil {
		return Reply{
			Content:    fmt.Sprintf("I'm sorry, I encountered an error processing your request: %s", err),
			Model:      model,
			Deployment: deployment,
			Success:    false,
			Error:      err.Error(),
		}
	}
	reply.Model = model
	reply.Deployment = deployment
	reply.Success = true
	return reply
}

func (c *Client) complete(ctx context.Context, deployment string, messages []chatMessage) (Reply, error) {
	body, err := json.Marshal(chatRequest{
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		TopP:        1.0,
	})
	if err != nil {
		return Reply{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), deployment, c.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.recordFailure("timeout")
			return Reply{}, errors.New("completion timed out")
		}
		c.recordFailure("transport")
		return Reply{}, err
	}
	defer res.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&parsed); err != nil {
		return Reply{}, fmt.Errorf("decode completion: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		c.recordFailure(strconv.Itoa(res.StatusCode))
		if parsed.Error != nil && parsed.Error.Message != "" {
			return Reply{}, fmt.Errorf("completion failed: %s", parsed.Error.Message)
		}
		return Reply{}, fmt.Errorf("completion failed: %s", res.Status)
	}
	if len(parsed.Choices) == 0 {
		return Reply{}, errors.New("completion returned no choices")
	}

	return Reply{
		Content:          parsed.Choices[0].Message.Content,
		TokensUsed:       parsed.Usage.TotalTokens,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func (c *Client) recordFailure(code string) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.EngineErrors.WithLabelValues("brain", code).Inc()
	}
}

// EstimateTokens approximates the token count of text, around four
// characters per token for English.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// TruncateHistory keeps the most recent turns that fit within maxTokens,
// preserving order.
func TruncateHistory(history []Turn, maxTokens int) []Turn {
	if len(history) == 0 || maxTokens <= 0 {
		return nil
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := EstimateTokens(history[i].Content)
		if total+cost > maxTokens {
			break
		}
		total += cost
		start = i
	}
	return append([]Turn(nil), history[start:]...)
}
