package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/benchtop/internal/logfields"
)

type contextKey string

const technicianKey contextKey = "technician"

// technicianMiddleware records who is at the bench. The shop's reverse proxy
// authenticates and forwards the user; requests without one stay anonymous.
func technicianMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get("X-Auth-User")
		if user == "" {
			user = r.Header.Get("X-Forwarded-User")
		}
		if user == "" {
			user = r.Header.Get("Remote-User")
		}
		if user == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), technicianKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func technician(r *http.Request) string {
	user, _ := r.Context().Value(technicianKey).(string)
	return user
}

// requestLogger logs method, path, status and duration of each request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("HTTP request",
				logfields.Method(r.Method),
				logfields.Path(r.URL.Path),
				logfields.Status(status),
				logfields.DurationMS(float64(time.Since(start).Microseconds())/1000),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
