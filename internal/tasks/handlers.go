package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"shadowlights-backend/internal/audit"
	"shadowlights-backend/internal/auth"
)

// Notifier kicks off the external enrichment workflow for a freshly created
// task. Implementations must never block the caller.
type Notifier interface {
	Notify(taskID, taskTitle, userID string)
}

func NewListHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		result, err := store.ListByOwner(r.Context(), uid)
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if result == nil {
			result = []Task{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

func NewCreateHandler(log *slog.Logger, store Store, notifier Notifier, rec audit.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			Title string `json:"title"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		title := strings.TrimSpace(body.Title)
		if title == "" {
			http.Error(w, "title is required", http.StatusBadRequest)
			return
		}

		t, err := store.Insert(r.Context(), uid, title)
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		rec.Record(r.Context(), uid, "task_created", audit.SourceEventKeyFromRequest(r), map[string]any{
			"task_id":   t.ID,
			"title_len": len(t.Title),
		})

		// Enrichment is optional metadata: the response never waits on the
		// workflow engine.
		notifier.Notify(t.ID, t.Title, t.UserID)

		log.Info("task created", "task_id", t.ID, "user_id", uid)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(t)
	}
}

func NewUpdateHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			ID         string  `json:"id"`
			Title      *string `json:"title"`
			IsComplete *bool   `json:"is_complete"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.ID == "" {
			http.Error(w, "task id is required", http.StatusBadRequest)
			return
		}
		if body.Title != nil && strings.TrimSpace(*body.Title) == "" {
			http.Error(w, "title must not be empty", http.StatusBadRequest)
			return
		}

		t, err := store.UpdateFields(r.Context(), body.ID, uid, Fields{
			Title:      body.Title,
			IsComplete: body.IsComplete,
		})
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(t)
	}
}

func NewDeleteHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.ID == "" {
			http.Error(w, "task id is required", http.StatusBadRequest)
			return
		}

		if err := store.Delete(r.Context(), body.ID, uid); err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"message": "Task deleted successfully",
		})
	}
}
