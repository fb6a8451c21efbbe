// Package httpapi exposes the web API: login, chat, avatar configuration,
// conversation history, video artifacts and the realtime avatar session
// channel.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lucamoretti/visage/internal/artifact"
	"github.com/lucamoretti/visage/internal/auth"
	"github.com/lucamoretti/visage/internal/avatar"
	"github.com/lucamoretti/visage/internal/brain"
	"github.com/lucamoretti/visage/internal/config"
	"github.com/lucamoretti/visage/internal/input"
	"github.com/lucamoretti/visage/internal/observability"
	"github.com/lucamoretti/visage/internal/speech"
	"github.com/lucamoretti/visage/internal/transcript"
)

// Completer produces chat replies. Failures come back inside the Reply.
type Completer interface {
	Complete(ctx context.Context, userInput, model string, history []brain.Turn) brain.Reply
	Models() []string
}

// RelayTokenSource issues ephemeral ICE credentials for the realtime
// transport.
type RelayTokenSource interface {
	RelayToken(ctx context.Context) (speech.ICEToken, error)
}

// VoiceLister fetches the live voice inventory from the speech engine.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]speech.VoiceInfo, error)
}

// Deps carries the wired services the server dispatches to. Brain, Relay and
// Voices may be nil when the corresponding backend is not configured; the
// affected endpoints degrade instead of failing at startup.
type Deps struct {
	Gate        *auth.Gate
	Normalizer  *input.Normalizer
	Brain       Completer
	Manager     *avatar.Manager
	Registry    *avatar.Registry
	Transcripts transcript.Store
	Artifacts   artifact.Store
	Relay       RelayTokenSource
	Voices      VoiceLister
	Metrics     *observability.Metrics
}

type Server struct {
	cfg         config.Config
	gate        *auth.Gate
	normalizer  *input.Normalizer
	brain       Completer
	manager     *avatar.Manager
	registry    *avatar.Registry
	transcripts transcript.Store
	artifacts   artifact.Store
	relay       RelayTokenSource
	voices      VoiceLister
	metrics     *observability.Metrics
	upgrader    websocket.Upgrader

	// Per-user avatar preferences set through POST /api/avatar/config.
	prefMu sync.RWMutex
	prefs  map[string]avatar.Overrides
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:         cfg,
		gate:        deps.Gate,
		normalizer:  deps.Normalizer,
		brain:       deps.Brain,
		manager:     deps.Manager,
		registry:    deps.Registry,
		transcripts: deps.Transcripts,
		artifacts:   deps.Artifacts,
		relay:       deps.Relay,
		voices:      deps.Voices,
		metrics:     deps.Metrics,
		prefs:       make(map[string]avatar.Overrides),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only same-origin browser connections may drive an
				// avatar session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.requireAuth(s.handleLogout))

	r.Post("/api/chat", s.requireAuth(s.handleChat))
	r.Get("/api/models", s.requireAuth(s.handleModels))

	r.Get("/api/avatar/options", s.requireAuth(s.handleAvatarOptions))
	r.Get("/api/avatar/config", s.requireAuth(s.handleGetAvatarConfig))
	r.Post("/api/avatar/config", s.requireAuth(s.handleSetAvatarConfig))
	r.Get("/api/voices", s.requireAuth(s.handleVoices))
	r.Get("/api/video/{id}", s.handleVideo)

	r.Get("/api/conversation", s.requireAuth(s.handleConversation))
	r.Delete("/api/conversation", s.requireAuth(s.handleClearConversation))
	r.Get("/api/conversation/export", s.requireAuth(s.handleExportConversation))

	r.Post("/api/avatar/session", s.requireAuth(s.handleOpenSession))
	r.Get("/api/avatar/sessions", s.requireAuth(s.handleListSessions))
	r.Post("/api/avatar/session/{id}/close", s.requireAuth(s.handleCloseSession))
	r.Get("/api/avatar/session/{id}/ice", s.requireAuth(s.handleSessionICE))
	r.Get("/api/avatar/session/ws", s.handleSessionWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.registry.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"brain_configured":  s.brain != nil,
		"speech_configured": s.relay != nil,
	})
}

type ctxKey int

const userKey ctxKey = 0

func userFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey).(string)
	return u
}

// bearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.gate.Authenticate(bearerToken(r))
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "valid bearer token required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

func (s *Server) preferences(user string) avatar.Overrides {
	s.prefMu.RLock()
	defer s.prefMu.RUnlock()
	return s.prefs[user]
}

func (s *Server) setPreferences(user string, o avatar.Overrides) {
	s.prefMu.Lock()
	s.prefs[user] = o
	s.prefMu.Unlock()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
