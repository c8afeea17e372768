package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hperssn/benchtop/internal/logfields"
	"github.com/hperssn/benchtop/internal/runner"
)

const keepAliveInterval = 15 * time.Second

// streamEvents sends the current state, then every state change and timer
// completion of the session until it closes or the client goes away.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	snap, events, unsubscribe, err := sess.Watch(s.eventBuffer)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := s.logger.With(logfields.SessionID(sess.ID()))
	logger.Debug("Session event stream opened")

	s.writeEvent(w, runner.Event{Type: runner.EventState, SessionID: sess.ID(), State: &snap, At: snap.LastActivity})
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("Session event stream closed by client")
			return

		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case ev, ok := <-events:
			if !ok {
				logger.Debug("Session event stream ended")
				return
			}
			s.writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, ev runner.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to marshal session event", logfields.Error(err))
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}
