package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"shadowlights-backend/internal/tasks"
)

type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]tasks.Task
	calls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]tasks.Task)}
}

func (s *fakeStore) add(t tasks.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[t.ID] = t
}

func (s *fakeStore) get(id string) (tasks.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	return t, ok
}

func (s *fakeStore) ListByOwner(context.Context, string) ([]tasks.Task, error) {
	return nil, nil
}

func (s *fakeStore) Insert(context.Context, string, string) (tasks.Task, error) {
	return tasks.Task{}, nil
}

func (s *fakeStore) UpdateFields(context.Context, string, string, tasks.Fields) (tasks.Task, error) {
	return tasks.Task{}, tasks.ErrNotFound
}

func (s *fakeStore) UpdateEnrichment(_ context.Context, id, userID, titleEnriched, descriptionEnriched string) (tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	t, ok := s.rows[id]
	if !ok || t.UserID != userID {
		return tasks.Task{}, tasks.ErrNotFound
	}
	t.TitleEnriched = &titleEnriched
	t.DescriptionEnriched = &descriptionEnriched
	s.rows[id] = t
	return t, nil
}

func (s *fakeStore) Delete(context.Context, string, string) error {
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *fakeRecorder) Record(_ context.Context, _, eventName, _ string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventName)
}

func (r *fakeRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postCallback(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/enrichment-callback", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func validBody(taskID, userID string) map[string]string {
	return map[string]string{
		"task_id":              taskID,
		"user_id":              userID,
		"title_enriched":       "🥛 Buy milk",
		"description_enriched": "Pick up dairy",
	}
}

func TestCallback_MissingFields(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	h := NewCallbackHandler(discardLogger(), store, &fakeRecorder{})

	for _, field := range []string{"task_id", "user_id", "title_enriched", "description_enriched"} {
		body := validBody("t1", "u1")
		delete(body, field)

		rec := postCallback(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("missing %s: expected 400, got %d", field, rec.Code)
		}
	}

	if store.calls != 0 {
		t.Fatalf("expected no update attempted, got %d", store.calls)
	}
}

func TestCallback_Success(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.add(tasks.Task{ID: "t1", UserID: "u1", Title: "Buy milk", CreatedAt: time.Now()})
	recorder := &fakeRecorder{}
	h := NewCallbackHandler(discardLogger(), store, recorder)

	rec := postCallback(t, h, validBody("t1", "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Message string     `json:"message"`
		Data    tasks.Task `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Message == "" {
		t.Fatal("expected confirmation message")
	}
	if out.Data.TitleEnriched == nil || *out.Data.TitleEnriched != "🥛 Buy milk" {
		t.Fatalf("expected enriched title in response, got %+v", out.Data.TitleEnriched)
	}

	// only the enrichment columns moved
	row, _ := store.get("t1")
	if row.Title != "Buy milk" || row.IsComplete {
		t.Fatalf("title/is_complete must be untouched, got %+v", row)
	}
	if row.DescriptionEnriched == nil || *row.DescriptionEnriched != "Pick up dairy" {
		t.Fatal("expected description_enriched updated")
	}

	names := recorder.names()
	if len(names) != 1 || names[0] != "enrichment_applied" {
		t.Fatalf("expected enrichment_applied audit event, got %v", names)
	}
}

func TestCallback_ExtraOutputFieldIgnored(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.add(tasks.Task{ID: "t1", UserID: "u1", Title: "Buy milk"})
	h := NewCallbackHandler(discardLogger(), store, &fakeRecorder{})

	body := map[string]any{
		"task_id":              "t1",
		"user_id":              "u1",
		"title_enriched":       "x",
		"description_enriched": "y",
		"output":               map[string]any{"whatever": true},
	}
	rec := postCallback(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCallback_DeletedTaskIsNotFound(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	recorder := &fakeRecorder{}
	h := NewCallbackHandler(discardLogger(), store, recorder)

	rec := postCallback(t, h, validBody("gone", "u1"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for zero matching rows, got %d", rec.Code)
	}
	if len(recorder.names()) != 0 {
		t.Fatalf("no audit event expected on miss, got %v", recorder.names())
	}
}

func TestCallback_WrongOwnerIsNotFound(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.add(tasks.Task{ID: "t1", UserID: "u1", Title: "Buy milk"})
	h := NewCallbackHandler(discardLogger(), store, &fakeRecorder{})

	rec := postCallback(t, h, validBody("t1", "someone-else"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for mismatched owner, got %d", rec.Code)
	}

	row, _ := store.get("t1")
	if row.TitleEnriched != nil {
		t.Fatal("mismatched owner must not update the row")
	}
}
