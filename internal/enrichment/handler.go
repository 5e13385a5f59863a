package enrichment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"shadowlights-backend/internal/audit"
	"shadowlights-backend/internal/tasks"
)

// CallbackIn is what the workflow engine posts back once enrichment is done.
// The identity pair comes from the engine, not from a session; the update is
// scoped by it. An output field may be present and is ignored.
type CallbackIn struct {
	TaskID              string `json:"task_id"`
	UserID              string `json:"user_id"`
	TitleEnriched       string `json:"title_enriched"`
	DescriptionEnriched string `json:"description_enriched"`
}

// NewCallbackHandler applies the engine's result to the task's two enrichment
// columns. Zero matching rows means 404: success is never reported with
// fabricated data.
func NewCallbackHandler(log *slog.Logger, store tasks.Store, rec audit.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CallbackIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if in.TaskID == "" || in.UserID == "" || in.TitleEnriched == "" || in.DescriptionEnriched == "" {
			http.Error(w, "missing required fields", http.StatusBadRequest)
			return
		}

		t, err := store.UpdateEnrichment(r.Context(), in.TaskID, in.UserID, in.TitleEnriched, in.DescriptionEnriched)
		if errors.Is(err, tasks.ErrNotFound) {
			log.Warn("enrichment callback for unknown task", "task_id", in.TaskID)
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}

		rec.Record(r.Context(), in.UserID, "enrichment_applied", "enriched:"+in.TaskID, map[string]any{
			"task_id": in.TaskID,
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Task enriched successfully",
			"data":    t,
		})
	}
}
