// Package env composes the environment handed to the managed process.
package env

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Var map[string]string

type Env struct {
	Var  Var // global variables (K->V)
	base Var // cached base, usually the OS environment
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() *Env {
	return e.WithBase(os.Environ())
}

// WithBase replaces the base with the given K=V pairs.
func (e *Env) WithBase(pairs []string) *Env {
	base := make(Var, len(pairs))
	putPairs(base, pairs)
	e.base = base
	return e
}

// WithSet sets a global variable K=V.
func (e *Env) WithSet(k, v string) *Env {
	if k == "" {
		return e
	}
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
	return e
}

// WithFile loads a .env file into the global variables.
func (e *Env) WithFile(path string) (*Env, error) {
	m, err := LoadFile(path)
	if err != nil {
		return e, err
	}
	for k, v := range m {
		e.WithSet(k, v)
	}
	return e, nil
}

// Merge composes the final environment list applying order:
// base, then global overrides, then perProc ("K=V") overrides.
// ${VAR} references are expanded against the composed map (one level).
// The result is sorted by key.
func (e *Env) Merge(perProc []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(Var, len(e.base)+len(e.Var)+len(perProc))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k != "" {
			m[k] = v
		}
	}
	putPairs(m, perProc)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

func putPairs(m Var, pairs []string) {
	for _, kv := range pairs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
}

// expand replaces ${NAME} with its value in m. Unknown names expand to "".
// Bare $NAME is left alone.
func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		b.WriteString(m[s[i+2:i+2+j]])
		s = s[i+2+j+1:]
	}
	b.WriteString(s)
	return b.String()
}

// LoadFile parses a .env file with KEY=VALUE lines. Blank lines and lines
// starting with # are ignored, as is a leading "export ". One pair of
// surrounding quotes is stripped from values.
func LoadFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.IndexByte(line, '=')
		if i <= 0 {
			continue
		}
		k := strings.TrimSpace(line[:i])
		v := strings.TrimSpace(line[i+1:])
		if n := len(v); n >= 2 && (v[0] == '"' || v[0] == '\'') && v[n-1] == v[0] {
			v = v[1 : n-1]
		}
		m[k] = v
	}
	return m, nil
}
