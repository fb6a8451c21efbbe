// Package transcript persists per-client conversation history.
package transcript

import (
	"context"
	"time"
)

// Turn stores a single user or assistant conversational turn. Assistant
// turns also record the model and the avatar configuration that rendered
// the reply.
type Turn struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	InputType    string    `json:"input_type,omitempty"`
	Model        string    `json:"model_used,omitempty"`
	TokensUsed   int       `json:"tokens_used,omitempty"`
	AvatarConfig string    `json:"avatar_config,omitempty"`
	CreatedAt    time.Time `json:"timestamp"`
}

// Store persists and retrieves conversation turns.
type Store interface {
	SaveTurn(ctx context.Context, turn Turn) error
	History(ctx context.Context, clientID string, limit int) ([]Turn, error)
	Clear(ctx context.Context, clientID string) error
	Close() error
}

// Export is the downloadable conversation payload.
type Export struct {
	ExportedAt        time.Time `json:"exported_at"`
	User              string    `json:"user"`
	ConversationCount int       `json:"conversation_count"`
	Conversation      []Turn    `json:"conversation"`
}
