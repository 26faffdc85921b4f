package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/ContentExtract/internal/core"
	"github.com/JonMunkholm/ContentExtract/internal/web/templates"
)

// maxHistoryLimit caps the history endpoint's limit parameter.
const maxHistoryLimit = 500

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	profiles := s.service.Profiles()
	options := make([]templates.ProfileOption, len(profiles))
	for i, p := range profiles {
		options[i] = templates.ProfileOption{
			Name:        p.Name,
			Description: p.Description,
			Default:     p.Default,
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.UploadPage(templates.UploadPageParams{
		Profiles:       options,
		MaxFileSizeMB:  s.cfg.Upload.MaxFileSize / (1024 * 1024),
		HistoryEnabled: s.service.HistoryEnabled(),
	}).Render(r.Context(), w)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handleProfiles lists the registered extraction profiles.
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]any{
		"default":  s.service.DefaultProfile(),
		"profiles": s.service.Profiles(),
	})
}

type statusResponse struct {
	Limiter        core.LimiterStatus `json:"limiter"`
	HistoryEnabled bool               `json:"history_enabled"`
	DefaultProfile string             `json:"default_profile"`
}

// handleStatus reports run limiter state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, statusResponse{
		Limiter:        s.service.LimiterStatus(),
		HistoryEnabled: s.service.HistoryEnabled(),
		DefaultProfile: s.service.DefaultProfile(),
	})
}

// handleHistory returns recent runs, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if runs == nil {
		runs = []core.RunRecord{}
	}
	writeJSON(w, r, map[string]any{"runs": runs})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	return parsePositiveInt(r.URL.Query().Get(name), defaultVal)
}

func parsePositiveInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
