package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucamoretti/visage/internal/artifact"
	"github.com/lucamoretti/visage/internal/avatar"
	"github.com/lucamoretti/visage/internal/catalog"
)

func (s *Server) handleAvatarOptions(w http.ResponseWriter, _ *http.Request) {
	chars := catalog.Characters()
	stylesByCharacter := make(map[string][]string, len(chars))
	for _, c := range chars {
		stylesByCharacter[c.ID] = catalog.StylesFor(c.ID)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"characters":          chars,
		"styles":              catalog.Styles(),
		"styles_by_character": stylesByCharacter,
		"voices":              catalog.Voices(),
		"gestures":            catalog.Gestures(),
		"backgrounds":         catalog.Backgrounds(),
		"video_qualities":     []string{"low", "medium", "high"},
		"defaults":            s.manager.Builder().Defaults(),
	})
}

func (s *Server) handleGetAvatarConfig(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	prefs := s.preferences(user)
	respondJSON(w, http.StatusOK, map[string]any{
		"preferences": prefs,
		"resolved":    s.manager.Builder().Build(prefs),
	})
}

// handleSetAvatarConfig validates the submitted preferences strictly: a POST
// with any invalid field is rejected rather than silently repaired, unlike
// per-request overrides which fall back.
func (s *Server) handleSetAvatarConfig(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var overrides avatar.Overrides
	if err := decodeJSON(r, &overrides); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	merged := avatar.Apply(s.manager.Builder().Defaults(), overrides)
	if err := avatar.Validate(merged); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_avatar_config", err.Error())
		return
	}

	s.setPreferences(user, overrides)
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"resolved": s.manager.Builder().Build(overrides),
	})
}

// handleVoices serves the voice inventory, live from the engine when
// available and the static catalog otherwise. Query parameters language and
// gender narrow the catalog list.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.voices != nil {
		if live, err := s.voices.ListVoices(r.Context()); err == nil {
			respondJSON(w, http.StatusOK, map[string]any{
				"voices": live,
				"count":  len(live),
				"source": "engine",
			})
			return
		}
		// Engine listing failed; fall through to the catalog.
	}

	q := r.URL.Query()
	voices := catalog.FilterVoices(q.Get("language"), q.Get("gender"))
	respondJSON(w, http.StatusOK, map[string]any{
		"voices": voices,
		"count":  len(voices),
		"source": "catalog",
	})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := s.artifacts.Read(r.Context(), id)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			respondError(w, http.StatusNotFound, "video_not_found", fmt.Sprintf("video %s not found", id))
			return
		}
		respondError(w, http.StatusInternalServerError, "video_read_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
