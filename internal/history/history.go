package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventTransition   EventType = "transition"
	EventStaleCleared EventType = "stale_cleared"
	EventConflict     EventType = "conflict"
	EventDependency   EventType = "dependency_unavailable"
)

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Port       int       `json:"port"`
	Host       string    `json:"host,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

const sendTimeout = 3 * time.Second

// Recorder stamps events with a per-invocation run id and fans them out to
// sinks. Sink failures are logged and never reach the caller. A nil
// *Recorder discards everything.
type Recorder struct {
	runID  uuid.UUID
	sinks  []Sink
	logger *slog.Logger
}

func NewRecorder(l *slog.Logger, sinks ...Sink) *Recorder {
	if l == nil {
		l = slog.Default()
	}
	return &Recorder{runID: uuid.New(), sinks: sinks, logger: l}
}

func (r *Recorder) RunID() uuid.UUID {
	if r == nil {
		return uuid.Nil
	}
	return r.runID
}

func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil || len(r.sinks) == 0 {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.RunID = r.runID
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	for _, s := range r.sinks {
		if err := s.Send(ctx, e); err != nil {
			r.logger.Warn("history sink send failed", "type", e.Type, "error", err)
		}
	}
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	var first error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
