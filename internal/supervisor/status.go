package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/bloomctl/internal/dependency"
	"github.com/loykin/bloomctl/internal/history"
	"github.com/loykin/bloomctl/internal/port"
	"github.com/loykin/bloomctl/internal/process"
	"github.com/loykin/bloomctl/internal/state"
)

// NewDefault wires the production collaborators around the state file at
// stateFile.
func NewDefault(opts Options, stateFile string, l *slog.Logger, rec *history.Recorder) (*Supervisor, error) {
	return New(opts, Deps{
		Store:   state.New(stateFile),
		Ports:   port.New(),
		Procs:   process.NewController(),
		Waiter:  dependency.NewWaiter(opts.Dependency.Interval, l),
		Logger:  l,
		History: rec,
	})
}

// Status is a read-only report of the recorded instance and its port.
type Status struct {
	Name          string    `json:"name"`
	State         State     `json:"state"`
	PID           int       `json:"pid,omitempty"`
	Kind          string    `json:"kind,omitempty"`
	Host          string    `json:"host"`
	Port          int       `json:"port"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	Alive         bool      `json:"alive"`
	Stale         bool      `json:"stale,omitempty"`
	PortOccupied  bool      `json:"port_occupied"`
	OccupantPID   int       `json:"occupant_pid,omitempty"`
	OccupantKnown bool      `json:"occupant_known,omitempty"`
	OccupantOurs  bool      `json:"occupant_ours,omitempty"`
}

// Status inspects the record and the port without changing either.
func (s *Supervisor) Status(ctx context.Context) Status {
	st := Status{Name: s.opts.Name, Host: s.opts.Host, Port: s.opts.Port, State: StateStopped}
	if rec, ok := s.store.Read(); ok {
		st.PID = rec.PID
		st.Kind = string(rec.Kind)
		st.StartedAt = rec.StartedAt
		st.Stale = s.isStale(rec)
		st.Alive = !st.Stale
		if !st.Stale {
			st.Host, st.Port = recordAddr(rec, st.Host, st.Port)
		}
		switch {
		case st.Stale:
			st.State = StateStopped
		case rec.IsPending():
			st.State = StateStarting
		default:
			st.State = StateRunning
		}
	}
	st.PortOccupied = s.ports.IsOccupied(ctx, st.Host, st.Port)
	if st.PortOccupied {
		st.OccupantPID, st.OccupantKnown = s.ports.OccupantOf(ctx, st.Port)
		st.OccupantOurs = st.OccupantKnown && (st.OccupantPID == st.PID || s.owns(st.OccupantPID))
		if !st.Alive && !st.OccupantOurs {
			st.State = StateConflict
		}
	}
	return st
}
