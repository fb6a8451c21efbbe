// Package app wires configuration, stores, engines and the HTTP API into a
// runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lucamoretti/visage/internal/artifact"
	"github.com/lucamoretti/visage/internal/auth"
	"github.com/lucamoretti/visage/internal/avatar"
	"github.com/lucamoretti/visage/internal/brain"
	"github.com/lucamoretti/visage/internal/config"
	"github.com/lucamoretti/visage/internal/httpapi"
	"github.com/lucamoretti/visage/internal/input"
	"github.com/lucamoretti/visage/internal/observability"
	"github.com/lucamoretti/visage/internal/speech"
	"github.com/lucamoretti/visage/internal/transcript"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Registry *avatar.Registry
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build assembles the service. Missing speech or completion credentials are
// not fatal: the speech engine falls back to the scripted mock and chat falls
// back to echo replies, so local development needs no cloud accounts.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	transcripts, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}

	artifacts, err := artifact.NewStore(cfg.ArtifactDir, artifact.RetentionPolicy{TTL: cfg.ArtifactRetention})
	if err != nil {
		_ = transcripts.Close()
		return nil, fmt.Errorf("artifact store init failed: %w", err)
	}
	if cfg.ArtifactRetention > 0 {
		artifact.StartJanitor(ctx, artifacts, cfg.ArtifactSweepInterval)
	}

	var (
		synth       avatar.Synthesizer
		engine      avatar.HandleEngine
		transcriber speech.Transcriber
		relay       httpapi.RelayTokenSource
		voices      httpapi.VoiceLister
	)
	speechClient, err := speech.NewClient(speech.ClientConfig{
		Key:        cfg.SpeechKey,
		Region:     cfg.SpeechRegion,
		TTSBaseURL: cfg.SpeechTTSBaseURL,
		STTBaseURL: cfg.SpeechSTTBaseURL,
		Timeout:    cfg.SpeechTimeout,
		Metrics:    metrics,
	})
	switch {
	case err == nil:
		synth, engine, transcriber = speechClient, speechClient, speechClient
		relay, voices = speechClient, speechClient
		log.Printf("speech engine: cloud (region %s)", cfg.SpeechRegion)
	case errors.Is(err, speech.ErrNotConfigured):
		mock := speech.NewMockEngine()
		synth, engine, transcriber = mock, mock, mock
		relay = mock
		log.Printf("speech engine: mock (no credentials configured)")
	default:
		_ = transcripts.Close()
		_ = artifacts.Close()
		return nil, fmt.Errorf("speech client init failed: %w", err)
	}

	var completer httpapi.Completer
	brainClient, err := brain.NewClient(brain.ClientConfig{
		Endpoint:   cfg.OpenAIEndpoint,
		APIKey:     cfg.OpenAIKey,
		APIVersion: cfg.OpenAIAPIVersion,
		Deployments: map[string]string{
			"gpt4o":   cfg.GPT4oDeployment,
			"o3-mini": cfg.O3MiniDeployment,
		},
		Timeout: cfg.LLMTimeout,
		Metrics: metrics,
	})
	switch {
	case err == nil:
		completer = brainClient
		log.Printf("completion backend: %s", strings.TrimRight(cfg.OpenAIEndpoint, "/"))
	case errors.Is(err, brain.ErrNotConfigured):
		log.Printf("completion backend: none (chat will echo)")
	default:
		_ = transcripts.Close()
		_ = artifacts.Close()
		return nil, fmt.Errorf("completion client init failed: %w", err)
	}

	builder := avatar.NewBuilder(avatar.DefaultConfig())
	builder.PerFieldFallback = cfg.PerFieldFallback
	registry := avatar.NewRegistry(builder, engine)
	manager := avatar.NewManager(builder, synth, artifacts)
	gate := auth.NewGate(map[string]string{cfg.AuthUsername: cfg.AuthPassword})

	api := httpapi.New(cfg, httpapi.Deps{
		Gate:        gate,
		Normalizer:  input.NewNormalizer(transcriber),
		Brain:       completer,
		Manager:     manager,
		Registry:    registry,
		Transcripts: transcripts,
		Artifacts:   artifacts,
		Relay:       relay,
		Voices:      voices,
		Metrics:     metrics,
	})

	cleanup := func() error {
		var errs []string
		for _, id := range registry.ListActive() {
			if err := registry.Close(id); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := artifacts.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := transcripts.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Registry: registry,
		Metrics:  metrics,
		Cleanup:  cleanup,
	}, nil
}
