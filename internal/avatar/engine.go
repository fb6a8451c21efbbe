package avatar

import (
	"context"
	"time"
)

// SynthesisResult carries the binary artifact returned by the engine.
type SynthesisResult struct {
	Video    []byte
	Duration time.Duration
}

// Synthesizer renders SSML into an avatar video in one shot.
type Synthesizer interface {
	SynthesizeAvatar(ctx context.Context, ssml string, cfg ResolvedConfig) (*SynthesisResult, error)
}

// Handle is a live synthesis binding for one realtime session, fixed to the
// voice it was acquired with.
type Handle interface {
	Speak(ctx context.Context, ssml string) (*SynthesisResult, error)
	Close() error
}

// HandleEngine acquires realtime synthesis handles.
type HandleEngine interface {
	NewHandle(ctx context.Context, voice string) (Handle, error)
}
