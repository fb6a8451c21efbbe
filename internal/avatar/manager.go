package avatar

import (
	"context"
	"log"
	"time"

	"github.com/lucamoretti/visage/internal/artifact"
)

// VideoResult is the outcome of a one-shot avatar video request. The resolved
// configuration that was actually used is always included so the caller can
// see what the fallback policy decided.
type VideoResult struct {
	VideoID    string         `json:"video_id,omitempty"`
	Locator    string         `json:"video_url,omitempty"`
	Duration   time.Duration  `json:"duration"`
	ConfigUsed ResolvedConfig `json:"config_used"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
}

// Manager runs the one-shot pipeline: build config, compose SSML, synthesize,
// store the artifact and hand back a locator.
type Manager struct {
	builder *Builder
	synth   Synthesizer
	store   artifact.Store
}

func NewManager(builder *Builder, synth Synthesizer, store artifact.Store) *Manager {
	return &Manager{builder: builder, synth: synth, store: store}
}

// Builder exposes the manager's config builder for callers that only need
// validation or resolution.
func (m *Manager) Builder() *Builder {
	return m.builder
}

// CreateVideo synthesizes an avatar video for text with the given preference
// overrides. The composed markup uses only the resolved configuration, so a
// gesture rejected by validation never reaches the engine. Engine and storage
// failures are reported in the result, never raised; a storage failure after
// successful synthesis is still a failed result because the artifact is
// unrecoverable.
func (m *Manager) CreateVideo(ctx context.Context, text string, overrides Overrides) VideoResult {
	resolved := m.builder.Build(overrides)
	ssml := Compose(text, resolved, resolved.Gesture)

	res, err := m.synth.SynthesizeAvatar(ctx, ssml, resolved)
	if err != nil {
		return VideoResult{ConfigUsed: resolved, Success: false, Error: err.Error()}
	}

	id, err := m.store.Store(ctx, res.Video)
	if err != nil {
		log.Printf("avatar: artifact store failed: %v", err)
		return VideoResult{ConfigUsed: resolved, Success: false, Error: err.Error()}
	}

	locator, err := m.store.Locate(ctx, id)
	if err != nil {
		return VideoResult{VideoID: id, ConfigUsed: resolved, Success: false, Error: err.Error()}
	}

	return VideoResult{
		VideoID:    id,
		Locator:    locator,
		Duration:   res.Duration,
		ConfigUsed: resolved,
		Success:    true,
	}
}
