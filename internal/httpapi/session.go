package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lucamoretti/visage/internal/avatar"
	"github.com/lucamoretti/visage/internal/protocol"
	"github.com/lucamoretti/visage/internal/speech"
)

type openSessionRequest struct {
	Avatar avatar.Overrides `json:"avatar_settings"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	overrides := req.Avatar
	if overrides == (avatar.Overrides{}) {
		overrides = s.preferences(user)
	}

	sess, err := s.registry.Open(r.Context(), user, overrides)
	if err != nil {
		if errors.Is(err, speech.ErrNotConfigured) {
			respondError(w, http.StatusServiceUnavailable, "speech_not_configured", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "session_open_failed", err.Error())
		return
	}

	s.metrics.ActiveSessions.Set(float64(s.registry.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	ids := s.registry.ListActive()
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": ids,
		"count":    len(ids),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Close(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.registry.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("closed").Inc()
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSessionICE issues fresh relay credentials for the session's WebRTC
// transport. Tokens expire, so clients fetch one per session setup.
func (s *Server) handleSessionICE(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.registry.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if s.relay == nil {
		respondError(w, http.StatusServiceUnavailable, "speech_not_configured", "relay token source not configured")
		return
	}

	token, err := s.relay.RelayToken(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "relay_token_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, token)
}

// handleSessionWS drives a realtime avatar session over a websocket. All
// writes happen from the read loop, so the connection has a single writer.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.gate.Authenticate(bearerToken(r)); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "valid bearer token required")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if _, err := s.registry.Get(sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	defer s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeWS(conn, protocol.TypeErrorEvent, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientSpeak:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeClientSpeak)).Inc()
			res, err := s.registry.Send(r.Context(), msg.SessionID, msg.Text)
			if err != nil {
				s.writeWS(conn, protocol.TypeErrorEvent, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: msg.SessionID,
					Code:      wsErrorCode(err),
					Retryable: false,
					Detail:    err.Error(),
				})
				continue
			}
			if res.Success {
				s.metrics.SynthesisResults.WithLabelValues("ok").Inc()
				s.metrics.ObserveSynthesisLatency(res.Duration)
			} else {
				s.metrics.SynthesisResults.WithLabelValues("error").Inc()
			}
			s.writeWS(conn, protocol.TypeSpeakResult, protocol.SpeakResult{
				Type:       protocol.TypeSpeakResult,
				SessionID:  msg.SessionID,
				Success:    res.Success,
				DurationMS: res.Duration.Milliseconds(),
				Error:      res.Error,
			})

		case protocol.ClientClose:
			s.metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypeClientClose)).Inc()
			if err := s.registry.Close(msg.SessionID); err != nil {
				s.writeWS(conn, protocol.TypeErrorEvent, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: msg.SessionID,
					Code:      wsErrorCode(err),
					Retryable: false,
					Detail:    err.Error(),
				})
				continue
			}
			s.metrics.ActiveSessions.Set(float64(s.registry.ActiveCount()))
			s.metrics.SessionEvents.WithLabelValues("closed").Inc()
			s.writeWS(conn, protocol.TypeSessionEvent, protocol.SessionEvent{
				Type:      protocol.TypeSessionEvent,
				SessionID: msg.SessionID,
				Code:      "session_closed",
			})
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, t protocol.MessageType, msg any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
}

func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, avatar.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, avatar.ErrSessionInactive):
		return "session_inactive"
	default:
		return "session_error"
	}
}
