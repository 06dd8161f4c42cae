package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/bloomctl/internal/history"
)

func testEvent() history.Event {
	return history.Event{
		ID:         uuid.MustParse("0b6c5a4e-3f7c-4d7e-9a55-0d4f1d9b2c11"),
		RunID:      uuid.New(),
		Type:       history.EventTransition,
		OccurredAt: time.Now().UTC(),
		Name:       "soundbloom",
		From:       "starting",
		To:         "running",
		PID:        12345,
		Port:       7000,
	}
}

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL string
	var receivedMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL+"/", "test-index")
	defer func() { _ = sink.Close() }()

	event := testEvent()
	if err := sink.Send(context.Background(), event); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if receivedMethod != http.MethodPut {
		t.Errorf("Expected PUT method, got: %s", receivedMethod)
	}
	if want := "/test-index/_doc/" + event.ID.String(); receivedURL != want {
		t.Errorf("Expected URL path %s, got: %s", want, receivedURL)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(receivedBody, &got); err != nil {
		t.Fatalf("Failed to parse received JSON: %v", err)
	}
	if got["type"] != string(history.EventTransition) {
		t.Errorf("Expected type %s, got: %v", history.EventTransition, got["type"])
	}
	if got["to"] != "running" {
		t.Errorf("Expected to=running, got: %v", got["to"])
	}
	if got["pid"] != float64(12345) {
		t.Errorf("Expected pid 12345, got: %v", got["pid"])
	}
}

func TestOpenSearchSink_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := New(server.URL, "test-index").Send(context.Background(), testEvent())
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "opensearch sink status 400") {
		t.Errorf("Expected status error message, got: %v", err)
	}
}

func TestOpenSearchSink_DefaultIndex(t *testing.T) {
	s := New("http://localhost:9200", "")
	if got := s.docURL(testEvent()); !strings.HasPrefix(got, "http://localhost:9200/"+DefaultIndex+"/_doc/") {
		t.Errorf("unexpected doc url %s", got)
	}
}
