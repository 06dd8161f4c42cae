package state

import (
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes how the recorded process was spawned.
type Kind string

const (
	KindProcess       Kind = "process"       // foreground child of the supervisor
	KindBackgroundJob Kind = "backgroundJob" // detached background launch
	KindPending       Kind = "pending"       // placeholder written before spawn
)

func (k Kind) valid() bool {
	switch k {
	case KindProcess, KindBackgroundJob, KindPending:
		return true
	}
	return false
}

// timeLayout keeps the state file human-readable.
const timeLayout = time.RFC3339

// Record describes the managed process currently claimed by the supervisor.
// Its presence on disk is the supervisor's claim of ownership over Port.
type Record struct {
	PID       int       `json:"pid"`
	Kind      Kind      `json:"kind"`
	Port      int       `json:"port"`
	Host      string    `json:"host"`
	StartedAt time.Time `json:"started_at"`
	// Instance is the spawn marker value carried in the child's environment.
	Instance string `json:"instance,omitempty"`
}

// IsPending reports whether r is a pre-spawn placeholder.
func (r Record) IsPending() bool { return r.Kind == KindPending }

// Marshal encodes r in the line-oriented state file layout:
// pid, port, startedAt, host, kind and, when set, instance.
func (r Record) Marshal() []byte {
	kind := r.Kind
	if kind == "" {
		kind = KindProcess
	}
	lines := []string{
		strconv.Itoa(r.PID),
		strconv.Itoa(r.Port),
		r.StartedAt.Format(timeLayout),
		r.Host,
		string(kind),
	}
	if r.Instance != "" {
		lines = append(lines, r.Instance)
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Parse decodes a state file. The boolean is false for any input that
// lacks one of the four leading fields or carries an unparsable value.
func Parse(b []byte) (Record, bool) {
	lines := strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	fields := make([]string, 0, len(lines))
	for _, l := range lines {
		fields = append(fields, strings.TrimSpace(l))
	}
	// drop trailing empty lines produced by the final newline
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) < 4 {
		return Record{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return Record{}, false
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil || port <= 0 || port > 65535 {
		return Record{}, false
	}
	started, err := time.Parse(timeLayout, fields[2])
	if err != nil {
		return Record{}, false
	}
	r := Record{PID: pid, Port: port, StartedAt: started, Host: fields[3], Kind: KindProcess}
	if len(fields) >= 5 && fields[4] != "" {
		k := Kind(fields[4])
		if !k.valid() {
			return Record{}, false
		}
		r.Kind = k
	}
	if len(fields) >= 6 {
		r.Instance = fields[5]
	}
	return r, true
}
