package process

import (
	"fmt"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// MarkerVar is the environment variable that tags every child launched by
// the supervisor with its instance identity.
const MarkerVar = "BLOOMCTL_INSTANCE"

// Marker returns the identity value for an instance bound to port.
func Marker(name string, port int) string {
	return fmt.Sprintf("%s:%d", name, port)
}

// MarkerEnv returns the KEY=VALUE pair for Marker.
func MarkerEnv(name string, port int) string {
	return MarkerVar + "=" + Marker(name, port)
}

// HasMarker reports whether the environment of pid carries MarkerVar set
// to want. An unreadable environment is returned as an error so callers can
// treat the process as foreign.
func (c *Controller) HasMarker(pid int, want string) (bool, error) {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false, err
	}
	env, err := p.Environ()
	if err != nil {
		return false, err
	}
	prefix := MarkerVar + "="
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, prefix); ok {
			return v == want, nil
		}
	}
	return false, nil
}
