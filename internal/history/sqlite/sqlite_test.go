package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/bloomctl/internal/history"
)

func event(typ history.EventType, from, to string) history.Event {
	return history.Event{
		ID:         uuid.New(),
		RunID:      uuid.New(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Name:       "soundbloom",
		From:       from,
		To:         to,
		PID:        12345,
		Port:       7000,
		Host:       "127.0.0.1",
		Kind:       "process",
	}
}

func TestSQLiteSink_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	for _, e := range []history.Event{
		event(history.EventTransition, "idle", "starting"),
		event(history.EventTransition, "starting", "running"),
		event(history.EventStaleCleared, "", ""),
	} {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send %s event: %v", e.Type, err)
		}
	}

	n, err := sink.Count(ctx, "")
	if err != nil || n != 3 {
		t.Fatalf("count all: n=%d err=%v", n, err)
	}
	n, err = sink.Count(ctx, history.EventTransition)
	if err != nil || n != 2 {
		t.Fatalf("count transitions: n=%d err=%v", n, err)
	}
}

func TestSQLiteSink_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	first, err := New(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Send(ctx, event(history.EventConflict, "", "")); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = first.Close()

	second, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()
	n, err := second.Count(ctx, history.EventConflict)
	if err != nil || n != 1 {
		t.Fatalf("events survive reopen: n=%d err=%v", n, err)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()
	if err := sink.Send(context.Background(), event(history.EventTransition, "running", "stopping")); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
