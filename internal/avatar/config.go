// Package avatar implements avatar configuration building, SSML composition,
// the realtime avatar session registry and the video synthesis pipeline.
package avatar

import (
	"fmt"

	"github.com/lucamoretti/visage/internal/catalog"
)

// Config is the user-tunable avatar bundle. An empty Gesture means none.
type Config struct {
	Character    string `json:"character"`
	Style        string `json:"style"`
	Voice        string `json:"voice"`
	Background   string `json:"background"`
	Gesture      string `json:"gesture,omitempty"`
	VideoQuality string `json:"video_quality"`
}

// Overrides carries partial user preferences. Empty fields keep the default;
// unknown JSON keys are dropped by decoding.
type Overrides struct {
	Character    string `json:"character,omitempty"`
	Style        string `json:"style,omitempty"`
	Voice        string `json:"voice,omitempty"`
	Background   string `json:"background,omitempty"`
	Gesture      string `json:"gesture,omitempty"`
	VideoQuality string `json:"video_quality,omitempty"`
}

// ResolvedBackground is the background expanded for the synthesis engine.
type ResolvedBackground struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// VideoFormat is the output encoding derived from the quality tier.
type VideoFormat struct {
	Codec      string `json:"codec"`
	Bitrate    int    `json:"bitrate"`
	Quality    string `json:"quality"`
	Resolution string `json:"resolution"`
}

// ResolvedConfig is an engine-ready configuration. Immutable once built.
type ResolvedConfig struct {
	Character   string             `json:"character"`
	Style       string             `json:"style"`
	Voice       string             `json:"voice"`
	Background  ResolvedBackground `json:"background"`
	VideoFormat VideoFormat        `json:"video_format"`
	Gesture     string             `json:"gesture,omitempty"`
}

// DefaultConfig returns the process-wide default avatar configuration. The
// character/style pair satisfies the catalog compatibility matrix.
func DefaultConfig() Config {
	return Config{
		Character:    "lisa",
		Style:        "casual-sitting",
		Voice:        "en-US-JennyNeural",
		Background:   "solid-white",
		Gesture:      "",
		VideoQuality: "high",
	}
}

const (
	bitrateHigh     = 3000000
	bitrateStandard = 2000000
)

// Builder merges caller overrides onto an explicit default configuration and
// resolves the result against the catalog.
type Builder struct {
	defaults Config

	// PerFieldFallback switches validation from the historical all-or-nothing
	// policy (any invalid field discards every override) to replacing only the
	// invalid fields with their defaults.
	PerFieldFallback bool
}

func NewBuilder(defaults Config) *Builder {
	return &Builder{defaults: defaults}
}

// Defaults returns the builder's base configuration.
func (b *Builder) Defaults() Config {
	return b.defaults
}

// Build merges overrides onto the defaults, validates the merged value and
// resolves it for synthesis. Invalid merges fall back to the defaults
// wholesale unless PerFieldFallback is set. Build never fails.
func (b *Builder) Build(overrides Overrides) ResolvedConfig {
	merged := b.merge(overrides)

	if err := Validate(merged); err != nil {
		if b.PerFieldFallback {
			merged = b.repair(merged)
		} else {
			merged = b.defaults
		}
	}

	return resolve(merged)
}

func (b *Builder) merge(o Overrides) Config {
	return Apply(b.defaults, o)
}

// Apply lays the non-empty override fields over base.
func Apply(base Config, o Overrides) Config {
	merged := base
	if o.Character != "" {
		merged.Character = o.Character
	}
	if o.Style != "" {
		merged.Style = o.Style
	}
	if o.Voice != "" {
		merged.Voice = o.Voice
	}
	if o.Background != "" {
		merged.Background = o.Background
	}
	if o.Gesture != "" {
		merged.Gesture = o.Gesture
	}
	if o.VideoQuality != "" {
		merged.VideoQuality = o.VideoQuality
	}
	return merged
}

// repair replaces each invalid field with its default. The style check runs
// after the character is settled so the pair stays inside the matrix.
func (b *Builder) repair(cfg Config) Config {
	if !catalog.HasCharacter(cfg.Character) {
		cfg.Character = b.defaults.Character
	}
	if !catalog.HasStyle(cfg.Style) || !catalog.StyleAllowed(cfg.Character, cfg.Style) {
		cfg.Style = b.defaults.Style
		if !catalog.StyleAllowed(cfg.Character, cfg.Style) {
			// The default style may not suit a non-default character.
			if allowed := catalog.StylesFor(cfg.Character); len(allowed) > 0 {
				cfg.Style = allowed[0]
			}
		}
	}
	if !catalog.HasVoice(cfg.Voice) {
		cfg.Voice = b.defaults.Voice
	}
	if bg := catalog.BackgroundByID(cfg.Background); bg.ID != cfg.Background {
		cfg.Background = b.defaults.Background
	}
	if cfg.Gesture != "" && !catalog.HasGesture(cfg.Gesture) {
		cfg.Gesture = b.defaults.Gesture
	}
	if !validQuality(cfg.VideoQuality) {
		cfg.VideoQuality = b.defaults.VideoQuality
	}
	return cfg
}

// Validate checks every field of cfg against the catalog, in the order
// character, style (existence then compatibility), voice, background,
// gesture, video quality. It returns the first violation.
func Validate(cfg Config) error {
	if !catalog.HasCharacter(cfg.Character) {
		return fmt.Errorf("unknown character %q", cfg.Character)
	}
	if !catalog.HasStyle(cfg.Style) {
		return fmt.Errorf("unknown style %q", cfg.Style)
	}
	if !catalog.StyleAllowed(cfg.Character, cfg.Style) {
		return fmt.Errorf("style %q not available for character %q", cfg.Style, cfg.Character)
	}
	if !catalog.HasVoice(cfg.Voice) {
		return fmt.Errorf("unknown voice %q", cfg.Voice)
	}
	if bg := catalog.BackgroundByID(cfg.Background); bg.ID != cfg.Background {
		return fmt.Errorf("unknown background %q", cfg.Background)
	}
	if cfg.Gesture != "" && !catalog.HasGesture(cfg.Gesture) {
		return fmt.Errorf("unknown gesture %q", cfg.Gesture)
	}
	if !validQuality(cfg.VideoQuality) {
		return fmt.Errorf("unknown video quality %q", cfg.VideoQuality)
	}
	return nil
}

func validQuality(q string) bool {
	switch q {
	case "low", "medium", "high":
		return true
	default:
		return false
	}
}

func resolve(cfg Config) ResolvedConfig {
	bg := catalog.BackgroundByID(cfg.Background)

	format := VideoFormat{
		Codec:      "h264",
		Bitrate:    bitrateStandard,
		Quality:    cfg.VideoQuality,
		Resolution: "720p",
	}
	if cfg.VideoQuality == "high" {
		format.Bitrate = bitrateHigh
		format.Resolution = "1080p"
	}

	return ResolvedConfig{
		Character:   cfg.Character,
		Style:       cfg.Style,
		Voice:       cfg.Voice,
		Background:  ResolvedBackground{Type: string(bg.Type), Value: bg.Value},
		VideoFormat: format,
		Gesture:     cfg.Gesture,
	}
}
