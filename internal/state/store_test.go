package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreWriteReadClear(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "run", "app.state"))

	started := time.Now().Truncate(time.Second)
	rec := Record{PID: 4242, Kind: KindBackgroundJob, Port: 7000, Host: "127.0.0.1", StartedAt: started, Instance: "app:7000"}
	require.NoError(t, s.Write(rec))

	got, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, rec.PID, got.PID)
	assert.Equal(t, rec.Kind, got.Kind)
	assert.Equal(t, rec.Port, got.Port)
	assert.Equal(t, rec.Host, got.Host)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, rec.Instance, got.Instance)

	require.NoError(t, s.Clear())
	_, ok = s.Read()
	assert.False(t, ok)
	// idempotent
	require.NoError(t, s.Clear())
}

func TestStoreWriteOverwritesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "app.state"))
	now := time.Now()
	require.NoError(t, s.Write(Record{PID: 1, Kind: KindPending, Port: 7000, Host: "localhost", StartedAt: now}))
	require.NoError(t, s.Write(Record{PID: 2, Kind: KindProcess, Port: 7000, Host: "localhost", StartedAt: now}))

	got, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, 2, got.PID)
	assert.Equal(t, KindProcess, got.Kind)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	assert.Len(t, entries, 1)
}

func TestReadMissingFileIsAbsent(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.state"))
	_, ok := s.Read()
	if ok {
		t.Fatalf("expected absent record for missing file")
	}
}

func TestParseCorruptIsAbsent(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"pid only":     "123\n",
		"three fields": "123\n7000\n2024-01-02T03:04:05Z\n",
		"bad pid":      "abc\n7000\n2024-01-02T03:04:05Z\nlocalhost\n",
		"bad port":     "123\n99999\n2024-01-02T03:04:05Z\nlocalhost\n",
		"bad time":     "123\n7000\nyesterday\nlocalhost\n",
		"bad kind":     "123\n7000\n2024-01-02T03:04:05Z\nlocalhost\nzombie\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, ok := Parse([]byte(in)); ok {
				t.Fatalf("expected corrupt input %q to parse as absent", in)
			}
		})
	}
}

func TestParseKindDefaultsToProcess(t *testing.T) {
	r, ok := Parse([]byte("123\r\n7000\r\n2024-01-02T03:04:05Z\r\n0.0.0.0\r\n"))
	require.True(t, ok)
	assert.Equal(t, KindProcess, r.Kind)
	assert.Equal(t, "0.0.0.0", r.Host)
	assert.Empty(t, r.Instance)
}

func TestReadCorruptFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.state")
	if err := os.WriteFile(path, []byte("garbage\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok := New(path).Read(); ok {
		t.Fatalf("corrupt file should read as absent")
	}
}

func FuzzParse(f *testing.F) {
	f.Add([]byte("123\n7000\n2024-01-02T03:04:05Z\nlocalhost\npending\n"))
	f.Add([]byte("not-a-record"))
	f.Add([]byte("\n\n\n\n"))
	f.Fuzz(func(t *testing.T, data []byte) {
		r, ok := Parse(data)
		if ok && (r.PID <= 0 || r.Port <= 0) {
			t.Fatalf("parsed invalid record: %+v", r)
		}
	})
}
