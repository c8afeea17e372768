package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hperssn/benchtop/internal/logfields"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// recentHistory lists closed sessions, newest first. ?since= takes an
// RFC 3339 time or a Go duration back from now; ?limit= caps the rows.
func (s *Server) recentHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, "history is not enabled", http.StatusNotFound)
		return
	}

	since := time.Now().Add(-7 * 24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := parseSince(v)
		if err != nil {
			s.respondError(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.GetRecentSessions(r.Context(), since, limit)
	if err != nil {
		s.logger.Error("Failed to read session history", logfields.Error(err))
		s.respondError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, records, http.StatusOK)
}

func (s *Server) historyStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, "history is not enabled", http.StatusNotFound)
		return
	}

	stats, err := s.history.GetChecklistStats(r.Context(), r.URL.Query().Get("checklist"))
	if err != nil {
		s.logger.Error("Failed to read session stats", logfields.Error(err))
		s.respondError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, stats, http.StatusOK)
}

func parseSince(v string) (time.Time, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return time.Now().Add(-d), nil
	}
	return time.Parse(time.RFC3339, v)
}
