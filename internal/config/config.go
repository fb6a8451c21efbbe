package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the avatar service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	AuthUsername string
	AuthPassword string

	SpeechKey        string
	SpeechRegion     string
	SpeechTTSBaseURL string
	SpeechSTTBaseURL string
	SpeechTimeout    time.Duration

	OpenAIEndpoint   string
	OpenAIKey        string
	OpenAIAPIVersion string
	GPT4oDeployment  string
	O3MiniDeployment string
	LLMTimeout       time.Duration
	HistoryMaxTokens int
	HistoryLimit     int

	DatabaseURL string

	ArtifactDir           string
	ArtifactRetention     time.Duration
	ArtifactSweepInterval time.Duration

	// PerFieldFallback switches avatar config validation from the
	// all-or-nothing override fallback to per-field repair.
	PerFieldFallback bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "visage"),
		AllowAnyOrigin:   false,
		// Fixed demo credentials; override both in any real deployment.
		AuthUsername:     envOrDefault("AUTH_USERNAME", "UTASAvatar"),
		AuthPassword:     envOrDefault("AUTH_PASSWORD", "UTASRocks!"),
		SpeechKey:        envTrimmed("SPEECH_KEY"),
		SpeechRegion:     envTrimmed("SPEECH_REGION"),
		SpeechTTSBaseURL: envTrimmed("SPEECH_TTS_BASE_URL"),
		SpeechSTTBaseURL: envTrimmed("SPEECH_STT_BASE_URL"),
		OpenAIEndpoint:   envTrimmed("AZURE_OPENAI_ENDPOINT"),
		OpenAIKey:        envTrimmed("AZURE_OPENAI_KEY"),
		OpenAIAPIVersion: envOrDefault("AZURE_OPENAI_API_VERSION", "2024-12-01-preview"),
		GPT4oDeployment:  envOrDefault("AZURE_OPENAI_GPT4O_DEPLOYMENT", "gpt-4o"),
		O3MiniDeployment: envOrDefault("AZURE_OPENAI_O3_MINI_DEPLOYMENT", "o3-mini"),
		DatabaseURL:      envTrimmed("DATABASE_URL"),
		ArtifactDir:      envOrDefault("ARTIFACT_DIR", "/tmp/avatars"),

		ShutdownTimeout:       15 * time.Second,
		SpeechTimeout:         30 * time.Second,
		LLMTimeout:            60 * time.Second,
		HistoryMaxTokens:      3000,
		HistoryLimit:          20,
		ArtifactRetention:     0,
		ArtifactSweepInterval: time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeechTimeout, err = durationFromEnv("SPEECH_TIMEOUT", cfg.SpeechTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ArtifactRetention, err = durationFromEnv("ARTIFACT_RETENTION", cfg.ArtifactRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.ArtifactSweepInterval, err = durationFromEnv("ARTIFACT_SWEEP_INTERVAL", cfg.ArtifactSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryMaxTokens, err = intFromEnv("LLM_HISTORY_MAX_TOKENS", cfg.HistoryMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("LLM_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.PerFieldFallback, err = boolFromEnv("AVATAR_PER_FIELD_FALLBACK", cfg.PerFieldFallback)
	if err != nil {
		return Config{}, err
	}

	if cfg.SpeechTimeout < time.Second {
		return Config{}, fmt.Errorf("SPEECH_TIMEOUT must be at least 1s")
	}
	if cfg.LLMTimeout < time.Second {
		return Config{}, fmt.Errorf("LLM_TIMEOUT must be at least 1s")
	}
	if cfg.HistoryMaxTokens <= 0 {
		return Config{}, fmt.Errorf("LLM_HISTORY_MAX_TOKENS must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("LLM_HISTORY_LIMIT must be positive")
	}
	if cfg.ArtifactRetention < 0 {
		return Config{}, fmt.Errorf("ARTIFACT_RETENTION must not be negative")
	}
	if cfg.AuthUsername == "" || cfg.AuthPassword == "" {
		return Config{}, fmt.Errorf("AUTH_USERNAME and AUTH_PASSWORD must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
