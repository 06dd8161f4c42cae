package process

import (
	"os/exec"
	"strings"

	"github.com/loykin/bloomctl/internal/logger"
)

// Spec describes how to launch the managed process.
type Spec struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`  // command to start the process (shell)
	WorkDir string   `json:"work_dir"` // optional working dir
	Env     []string `json:"env"`      // complete child environment; nil inherits ours
	// Detached starts the child in its own session so it survives the
	// supervisor's exit.
	Detached bool `json:"detached"`
	// InheritStdio attaches the supervisor's stdout/stderr when no log
	// destination is configured.
	InheritStdio bool              `json:"inherit_stdio"`
	Log          logger.FileConfig `json:"log"`
}

// BuildCommand constructs an *exec.Cmd for the given spec.Command.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		return getTrueCommand()
	}
	if _, afterC, ok := parseExplicitShell(cmdStr); ok {
		return getShellCommand(afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return getShellCommand(cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204 -- the command is operator configuration
	return exec.Command(parts[0], parts[1:]...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>" at the
// beginning of cmdStr. It returns (shellPath, afterCArg, true) when matched.
// It preserves the substring after "-c " verbatim to avoid breaking quoting.
func parseExplicitShell(cmdStr string) (string, string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			// Strip one pair of outer quotes so the shell parses the script itself.
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return strings.Fields(p)[0], after, true
		}
	}
	return "", "", false
}

// Executable returns the program the command would run, or "" when it
// goes through a shell.
func (s *Spec) Executable() string {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" || strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return ""
	}
	if _, _, ok := parseExplicitShell(cmdStr); ok {
		return ""
	}
	return strings.Fields(cmdStr)[0]
}
