package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/benchtop/internal/catalog"
	"github.com/hperssn/benchtop/internal/domain"
	"github.com/hperssn/benchtop/internal/logfields"
	"github.com/hperssn/benchtop/internal/runner"
)

// stepView is a step definition as rendered for the host UI.
type stepView struct {
	Order          int    `json:"order"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	TimerSeconds   *int   `json:"timer_seconds,omitempty"`
	SafetyCritical bool   `json:"is_safety"`
	SafetyNote     string `json:"safety_note,omitempty"`
}

type checklistView struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	DeviceType           string     `json:"device_type,omitempty"`
	RepairType           string     `json:"repair_type,omitempty"`
	EstimatedTimeMinutes int        `json:"estimated_time_minutes,omitempty"`
	SafetyCriticalSteps  int        `json:"safety_critical_steps"`
	Steps                []stepView `json:"steps"`
}

func newChecklistView(def *domain.Checklist) checklistView {
	v := checklistView{
		ID:                   def.ID,
		Name:                 def.Name,
		DeviceType:           def.DeviceType,
		RepairType:           def.RepairType,
		EstimatedTimeMinutes: def.EstimatedMinutes,
		SafetyCriticalSteps:  def.SafetyCriticalCount(),
		Steps:                make([]stepView, len(def.Steps)),
	}
	for i, st := range def.Steps {
		v.Steps[i] = stepView{
			Order:          st.Order,
			Title:          st.Title,
			Description:    st.Description,
			TimerSeconds:   st.TimerSeconds,
			SafetyCritical: st.SafetyCritical,
			SafetyNote:     st.DisplaySafetyNote(),
		}
	}
	return v
}

type sessionView struct {
	runner.Snapshot
	Checklist checklistView `json:"checklist"`
}

func (s *Server) listChecklists(w http.ResponseWriter, r *http.Request) {
	all, err := s.catalog.List(r.Context())
	if err != nil {
		s.catalogError(w, r, err)
		return
	}

	views := make([]checklistView, len(all))
	for i, def := range all {
		views[i] = newChecklistView(def)
	}
	s.respondJSON(w, views, http.StatusOK)
}

func (s *Server) getChecklist(w http.ResponseWriter, r *http.Request) {
	def, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.catalogError(w, r, err)
		return
	}
	s.respondJSON(w, newChecklistView(def), http.StatusOK)
}

// openSession starts a fresh runner for the checklist, discarding any
// session already open for it.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	def, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.catalogError(w, r, err)
		return
	}

	sess := s.manager.Open(def, technician(r))
	s.respondSession(w, sess, http.StatusCreated)
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, s.manager.List(), http.StatusOK)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondSession(w, sess, http.StatusOK)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.manager.Close(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, "session not found", http.StatusNotFound)
		return
	}
	s.respondJSON(w, summary, http.StatusOK)
}

func (s *Server) toggleStep(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	order, ok := s.stepParam(w, r, sess)
	if !ok {
		return
	}

	if _, err := sess.ToggleStep(order); err != nil {
		s.sessionError(w, err)
		return
	}
	s.respondSession(w, sess, http.StatusOK)
}

type startTimerRequest struct {
	Step    *int `json:"step"`
	Seconds *int `json:"seconds"`
}

// startTimer starts the countdown on a step. Without seconds it resumes the
// paused leftover or starts the declared duration; an explicit seconds must be
// one of those two values.
func (s *Server) startTimer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req startTimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Step == nil {
		s.respondError(w, "step is required", http.StatusBadRequest)
		return
	}
	if !sess.Checklist().HasStep(*req.Step) {
		s.respondError(w, "step not found", http.StatusNotFound)
		return
	}

	var (
		applied bool
		err     error
	)
	if req.Seconds == nil {
		applied, err = sess.ResumeTimer(*req.Step)
	} else {
		applied, err = sess.StartDeclaredTimer(*req.Step, *req.Seconds)
	}
	if err != nil {
		s.sessionError(w, err)
		return
	}
	if !applied {
		msg := "step has no timer"
		if req.Seconds != nil {
			msg = "seconds must be the declared duration or the paused remainder"
		}
		s.respondError(w, msg, http.StatusBadRequest)
		return
	}
	s.respondSession(w, sess, http.StatusOK)
}

func (s *Server) stopTimer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.StopTimer(); err != nil {
		s.sessionError(w, err)
		return
	}
	s.respondSession(w, sess, http.StatusOK)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*runner.Session, bool) {
	sess, ok := s.manager.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) stepParam(w http.ResponseWriter, r *http.Request, sess *runner.Session) (int, bool) {
	order, err := strconv.Atoi(chi.URLParam(r, "order"))
	if err != nil {
		s.respondError(w, "invalid step key", http.StatusBadRequest)
		return 0, false
	}
	if !sess.Checklist().HasStep(order) {
		s.respondError(w, "step not found", http.StatusNotFound)
		return 0, false
	}
	return order, true
}

func (s *Server) respondSession(w http.ResponseWriter, sess *runner.Session, status int) {
	snap, err := sess.Snapshot()
	if err != nil {
		s.sessionError(w, err)
		return
	}
	s.respondJSON(w, sessionView{Snapshot: snap, Checklist: newChecklistView(sess.Checklist())}, status)
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, runner.ErrSessionClosed) || errors.Is(err, runner.ErrSessionNotFound) {
		s.respondError(w, "session not found", http.StatusNotFound)
		return
	}
	s.logger.Error("Session request failed", logfields.Error(err))
	s.respondError(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) catalogError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		s.respondError(w, "checklist not found", http.StatusNotFound)
		return
	}
	s.logger.Error("Catalog request failed", logfields.Path(r.URL.Path), logfields.Error(err))
	s.respondError(w, "checklist catalog unavailable", http.StatusBadGateway)
}
