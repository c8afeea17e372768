package logfields

import "log/slog"

// Canonical log field names shared across packages.
const (
	KeySessionID   = "session_id"
	KeyChecklistID = "checklist_id"
	KeyStep        = "step"
	KeySeconds     = "seconds"
	KeyReason      = "reason"
	KeyTechnician  = "technician"
	KeySubject     = "subject"
	KeyPath        = "path"
	KeyMethod      = "method"
	KeyStatus      = "status"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
)

func SessionID(id string) slog.Attr   { return slog.String(KeySessionID, id) }
func ChecklistID(id string) slog.Attr { return slog.String(KeyChecklistID, id) }
func Step(order int) slog.Attr        { return slog.Int(KeyStep, order) }
func Seconds(n int) slog.Attr         { return slog.Int(KeySeconds, n) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Technician(t string) slog.Attr   { return slog.String(KeyTechnician, t) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
