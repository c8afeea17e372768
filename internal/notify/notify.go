// Package notify forwards step-timer completions to whoever needs to
// alert the technician.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hperssn/benchtop/internal/logfields"
	"github.com/hperssn/benchtop/internal/runner"
)

type Notifier interface {
	TimerFinished(ev runner.TimerFinished)
	Close() error
}

// Payload is the JSON body published for a finished timer.
type Payload struct {
	SessionID   string    `json:"session_id"`
	ChecklistID string    `json:"checklist_id"`
	Step        int       `json:"step"`
	Title       string    `json:"title"`
	Technician  string    `json:"technician,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

func NewPayload(ev runner.TimerFinished) Payload {
	return Payload{
		SessionID:   ev.SessionID,
		ChecklistID: ev.ChecklistID,
		Step:        ev.Step,
		Title:       ev.Title,
		Technician:  ev.Technician,
		FinishedAt:  ev.At.UTC(),
	}
}

// LogNotifier only logs, for setups without a message bus.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) TimerFinished(ev runner.TimerFinished) {
	n.logger.Info("Step timer done",
		logfields.SessionID(ev.SessionID),
		logfields.ChecklistID(ev.ChecklistID),
		logfields.Step(ev.Step),
		slog.String("title", ev.Title))
}

func (n *LogNotifier) Close() error { return nil }

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes a Payload per finished timer. nats.Conn.Publish
// only buffers, so it does not stall the session goroutine.
type NATSNotifier struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	logger  *slog.Logger
}

func NewNATSNotifier(url, subject string, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url, nats.Name("benchtop"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("NATS notifier connected", slog.String("url", url), logfields.Subject(subject))
	return &NATSNotifier{conn: conn, pub: conn, subject: subject, logger: logger}, nil
}

func (n *NATSNotifier) TimerFinished(ev runner.TimerFinished) {
	data, err := json.Marshal(NewPayload(ev))
	if err != nil {
		n.logger.Error("Failed to encode timer notification", logfields.Error(err))
		return
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		n.logger.Error("Failed to publish timer notification",
			logfields.Subject(n.subject),
			logfields.SessionID(ev.SessionID),
			logfields.Error(err))
	}
}

func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
