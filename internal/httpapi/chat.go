package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lucamoretti/visage/internal/avatar"
	"github.com/lucamoretti/visage/internal/brain"
	"github.com/lucamoretti/visage/internal/input"
	"github.com/lucamoretti/visage/internal/transcript"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	token, ok := s.gate.Login(req.Username, req.Password)
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"token":    token,
		"username": req.Username,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.gate.Logout(bearerToken(r))
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	models := []string{}
	if s.brain != nil {
		models = s.brain.Models()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"models":  models,
		"default": brain.DefaultModel,
	})
}

type chatRequest struct {
	InputType   string           `json:"input_type"`
	Text        string           `json:"text"`
	AudioBase64 string           `json:"audio_base64"`
	Model       string           `json:"model"`
	Avatar      avatar.Overrides `json:"avatar_settings"`
}

type chatResponse struct {
	Text          string                `json:"text"`
	Model         string                `json:"model"`
	InputType     string                `json:"input_type"`
	Confidence    float64               `json:"confidence"`
	TokensUsed    int                   `json:"tokens_used"`
	VideoID       string                `json:"video_id,omitempty"`
	VideoURL      string                `json:"video_url,omitempty"`
	VideoError    string                `json:"video_error,omitempty"`
	AvatarConfig  avatar.ResolvedConfig `json:"avatar_config"`
	UserInputText string                `json:"user_input_text"`
	Success       bool                  `json:"success"`
}

// handleChat runs the full turn pipeline: normalize the input, complete a
// reply with trimmed history, synthesize the avatar video and persist both
// turns. Synthesis failure degrades to a text-only reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.InputType == "" {
		req.InputType = string(input.TypeText)
	}

	norm := s.normalize(r.Context(), req)
	if !norm.Success {
		s.metrics.ChatTurns.WithLabelValues(string(norm.InputType), "rejected").Inc()
		respondError(w, http.StatusBadRequest, "invalid_input", norm.Error)
		return
	}

	overrides := req.Avatar
	if overrides == (avatar.Overrides{}) {
		overrides = s.preferences(user)
	}

	reply := s.complete(r.Context(), user, req.Model, norm.Text)

	video := s.manager.CreateVideo(r.Context(), reply.Content, overrides)
	if video.Success {
		s.metrics.SynthesisResults.WithLabelValues("ok").Inc()
		s.metrics.ObserveSynthesisLatency(video.Duration)
	} else {
		s.metrics.SynthesisResults.WithLabelValues("error").Inc()
	}

	outcome := "ok"
	if !reply.Success {
		outcome = "brain_error"
	}
	s.metrics.ChatTurns.WithLabelValues(string(norm.InputType), outcome).Inc()

	s.saveTurns(r.Context(), user, norm, reply, video)

	resp := chatResponse{
		Text:          reply.Content,
		Model:         reply.Model,
		InputType:     string(norm.InputType),
		Confidence:    norm.Confidence,
		TokensUsed:    reply.TokensUsed,
		AvatarConfig:  video.ConfigUsed,
		UserInputText: norm.Text,
		Success:       reply.Success,
	}
	if video.Success {
		resp.VideoID = video.VideoID
		resp.VideoURL = "/api/video/" + video.VideoID
	} else {
		resp.VideoError = video.Error
	}
	respondJSON(w, http.StatusOK, resp)
}

// normalize resolves the request into unified input.
func (s *Server) normalize(ctx context.Context, req chatRequest) input.Normalized {
	switch input.Type(req.InputType) {
	case input.TypeText:
		return s.normalizer.NormalizeText(req.Text)
	case input.TypeVoice:
		audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			return input.Normalized{InputType: input.TypeVoice, Error: "invalid base64 audio payload"}
		}
		return s.normalizer.NormalizeVoice(ctx, audio)
	default:
		return input.Normalized{
			InputType: input.Type(req.InputType),
			Error:     fmt.Sprintf("unsupported input type %q", req.InputType),
		}
	}
}

// complete fetches trimmed history and asks the completion backend. Without
// a configured backend the reply echoes the input so the rest of the
// pipeline stays exercisable.
func (s *Server) complete(ctx context.Context, user, model, text string) brain.Reply {
	if s.brain == nil {
		return brain.Reply{
			Content: "Echo: " + text,
			Model:   "echo",
			Success: true,
		}
	}

	history := s.history(ctx, user)
	return s.brain.Complete(ctx, text, model, history)
}

func (s *Server) history(ctx context.Context, user string) []brain.Turn {
	turns, err := s.transcripts.History(ctx, user, s.cfg.HistoryLimit)
	if err != nil {
		log.Printf("httpapi: history fetch failed for %s: %v", user, err)
		return nil
	}
	converted := make([]brain.Turn, 0, len(turns))
	for _, t := range turns {
		converted = append(converted, brain.Turn{Role: t.Role, Content: t.Content})
	}
	return brain.TruncateHistory(converted, s.cfg.HistoryMaxTokens)
}

// saveTurns persists the user and assistant turns. Persistence failures are
// logged, not surfaced; the reply has already been produced.
func (s *Server) saveTurns(ctx context.Context, user string, norm input.Normalized, reply brain.Reply, video avatar.VideoResult) {
	now := time.Now().UTC()

	if err := s.transcripts.SaveTurn(ctx, transcript.Turn{
		ClientID:  user,
		Role:      "user",
		Content:   norm.Text,
		InputType: string(norm.InputType),
		CreatedAt: now,
	}); err != nil {
		log.Printf("httpapi: save user turn failed: %v", err)
	}

	cfgJSON, _ := json.Marshal(video.ConfigUsed)
	if err := s.transcripts.SaveTurn(ctx, transcript.Turn{
		ClientID:     user,
		Role:         "assistant",
		Content:      reply.Content,
		Model:        reply.Model,
		TokensUsed:   reply.TokensUsed,
		AvatarConfig: string(cfgJSON),
		CreatedAt:    now,
	}); err != nil {
		log.Printf("httpapi: save assistant turn failed: %v", err)
	}
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	turns, err := s.transcripts.History(r.Context(), user, s.cfg.HistoryLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"conversation": turns,
		"count":        len(turns),
	})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.transcripts.Clear(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "clear_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleExportConversation(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	turns, err := s.transcripts.History(r.Context(), user, s.cfg.HistoryLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}

	export := transcript.Export{
		ExportedAt:        time.Now().UTC(),
		User:              user,
		ConversationCount: len(turns),
		Conversation:      turns,
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=conversation_%s.json", export.ExportedAt.Format("20060102_150405")))
	respondJSON(w, http.StatusOK, export)
}
