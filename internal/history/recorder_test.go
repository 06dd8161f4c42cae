package history

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (m *memSink) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *memSink) Close() error { m.closed = true; return nil }

func TestRecorderStampsEvents(t *testing.T) {
	a, b := &memSink{}, &memSink{err: errors.New("down")}
	r := NewRecorder(nil, a, b)

	r.Record(context.Background(), Event{Type: EventTransition, From: "idle", To: "starting", Port: 7000})
	r.Record(context.Background(), Event{Type: EventTransition, From: "starting", To: "running", Port: 7000})

	require.Len(t, a.events, 2)
	require.Len(t, b.events, 2, "a failing sink still receives every event")
	first, second := a.events[0], a.events[1]
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, r.RunID(), first.RunID)
	assert.Equal(t, first.RunID, second.RunID)
	assert.False(t, first.OccurredAt.IsZero())

	require.NoError(t, r.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), Event{Type: EventTransition})
	assert.Equal(t, uuid.Nil, r.RunID())
	assert.NoError(t, r.Close())
}

func TestRecorderIgnoresCancelledContext(t *testing.T) {
	s := &memSink{}
	r := NewRecorder(nil, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, Event{Type: EventTransition, To: "stopped"})
	require.Len(t, s.events, 1)
}
