package controlplane

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/taskstack/internal/audit"
	"github.com/fentz26/taskstack/internal/models"
	"github.com/fentz26/taskstack/internal/sse"
	"github.com/fentz26/taskstack/internal/store"
	"github.com/rs/zerolog"
)

func TestHealthEndpoint_OK(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected allow-origin *, got %q", got)
	}
}

func TestTaskEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/tasks", `{"name":"Call dentist","timeframe":"today"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("push: expected 200, got %d: %s", w.Code, w.Body)
	}
	var pushed models.Task
	decode(t, w, &pushed)
	if pushed.ID == "" || pushed.Name != "Call dentist" {
		t.Fatalf("push: unexpected task %+v", pushed)
	}

	w = do(t, h, http.MethodGet, "/tasks/peek", "")
	var top models.Task
	decode(t, w, &top)
	if top.ID != pushed.ID {
		t.Errorf("peek: expected %s, got %s", pushed.ID, top.ID)
	}

	w = do(t, h, http.MethodPatch, "/tasks/"+pushed.ID+"/toggle", "")
	var toggled models.Task
	decode(t, w, &toggled)
	if !toggled.Completed {
		t.Error("toggle: expected completed")
	}

	w = do(t, h, http.MethodGet, "/tasks/"+pushed.ID, "")
	var got models.Task
	decode(t, w, &got)
	if !got.Completed {
		t.Error("get: expected the toggle to persist")
	}

	w = do(t, h, http.MethodDelete, "/tasks/pop", "")
	var popped models.Task
	decode(t, w, &popped)
	if popped.ID != pushed.ID {
		t.Errorf("pop: expected %s, got %s", pushed.ID, popped.ID)
	}

	w = do(t, h, http.MethodGet, "/tasks", "")
	var tasks []models.Task
	decode(t, w, &tasks)
	if tasks == nil || len(tasks) != 0 {
		t.Errorf("list: expected an empty array, got %v", tasks)
	}
}

func TestTaskEndpoints_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodDelete, "/tasks/pop", "", http.StatusNotFound},
		{http.MethodGet, "/tasks/peek", "", http.StatusNotFound},
		{http.MethodGet, "/tasks/missing", "", http.StatusNotFound},
		{http.MethodPatch, "/tasks/missing/toggle", "", http.StatusNotFound},
		{http.MethodPost, "/tasks", "{", http.StatusBadRequest},
		{http.MethodPost, "/tasks", `{"name":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(t, h, tt.method, tt.path, tt.body)
		if w.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, w.Code)
		}
	}
}

func TestMutationsAreAudited(t *testing.T) {
	s, st := newTestServer(t)
	h := s.Handler()

	do(t, h, http.MethodPost, "/tasks", `{"name":"a"}`)
	do(t, h, http.MethodDelete, "/tasks/pop", "")

	entries, err := st.ListAudit(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Action != audit.ActionPop || entries[1].Action != audit.ActionPush {
		t.Errorf("Unexpected audit actions: %s, %s", entries[0].Action, entries[1].Action)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	do(t, h, http.MethodPost, "/tasks", `{"name":"a"}`)
	w := do(t, h, http.MethodGet, "/metrics", "")

	body := w.Body.String()
	for _, want := range []string{
		`taskstack_events_broadcast_total{action="push"} 1`,
		`taskstack_http_requests_total{code="200",route="POST /tasks"} 1`,
		`taskstack_stack_depth 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestEventsStream(t *testing.T) {
	s := newSeededServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected text/event-stream, got %q", ct)
	}

	events := make(chan sse.Event, 8)
	go func() {
		_ = sse.Read(ctx, resp.Body, func(ev sse.Event) error {
			events <- ev
			return nil
		})
		close(events)
	}()

	first := next(t, events)
	if first.Name != models.EventInitial {
		t.Fatalf("Expected initial event first, got %q", first.Name)
	}
	var initial models.InitialPayload
	if err := json.Unmarshal([]byte(first.Data), &initial); err != nil {
		t.Fatalf("decode initial: %v", err)
	}
	if len(initial.Tasks) != len(store.DefaultTasks) {
		t.Errorf("Expected %d seeded tasks, got %d", len(store.DefaultTasks), len(initial.Tasks))
	}

	w := do(t, s.Handler(), http.MethodDelete, "/tasks/pop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pop: expected 200, got %d", w.Code)
	}

	ev := next(t, events)
	if ev.Name != models.EventUpdate {
		t.Fatalf("Expected update event, got %q", ev.Name)
	}
	var update models.UpdatePayload
	if err := json.Unmarshal([]byte(ev.Data), &update); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if update.Action != models.ActionPop || update.TaskID != store.DefaultTasks[0].ID {
		t.Errorf("Unexpected update %+v", update)
	}
}

func TestShutdownEndsStreams(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after shutdown")
	}
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	hub := NewHub(1, NewMetrics())
	slow, _ := hub.Subscribe()
	fast, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	hub.Publish(models.UpdatePayload{Action: models.ActionPop, TaskID: "a"})
	<-fast
	hub.Publish(models.UpdatePayload{Action: models.ActionPop, TaskID: "b"})

	if hub.Len() != 1 {
		t.Fatalf("Expected the slow subscriber to be dropped, %d left", hub.Len())
	}
	<-slow
	if _, ok := <-slow; ok {
		t.Error("Expected the dropped subscriber's channel to be closed")
	}
	if u := <-fast; u.TaskID != "b" {
		t.Errorf("Expected fast subscriber to get b, got %s", u.TaskID)
	}
}

// Helper functions

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	metrics := NewMetrics()
	service := NewService(st, audit.NewRecorder(st), NewHub(0, metrics), metrics, zerolog.Nop())
	return NewServer(service, metrics, "127.0.0.1:0", zerolog.Nop()), st
}

func newSeededServer(t *testing.T) *Server {
	t.Helper()
	s, _ := newTestServer(t)
	if err := s.service.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func next(t *testing.T, events <-chan sse.Event) sse.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("stream ended early")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return sse.Event{}
}
