package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"shadowlights-backend/internal/audit"
)

// Notifier tells the external workflow engine about a freshly created task.
// Delivery is best-effort and at-most-once: no retries, and a failure never
// reaches the HTTP caller. Failures land in the audit trail as
// enrichment_failed so they stay observable.
type Notifier struct {
	webhookURL string
	client     *http.Client
	log        *slog.Logger
	rec        audit.Recorder
}

func NewNotifier(webhookURL string, log *slog.Logger, rec audit.Recorder) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
		rec:        rec,
	}
}

// Notify fires the webhook on a detached goroutine. An unconfigured URL is a
// no-op, not an error.
func (n *Notifier) Notify(taskID, taskTitle, userID string) {
	if n.webhookURL == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		n.rec.Record(ctx, userID, "enrichment_requested", "", map[string]any{
			"task_id": taskID,
		})

		if err := n.post(ctx, taskID, taskTitle, userID); err != nil {
			n.log.Warn("enrichment webhook failed", "task_id", taskID, "error", err)
			n.rec.Record(ctx, userID, "enrichment_failed", "", map[string]any{
				"task_id": taskID,
				"error":   err.Error(),
			})
		}
	}()
}

func (n *Notifier) post(ctx context.Context, taskID, taskTitle, userID string) error {
	payload, _ := json.Marshal(map[string]string{
		"task_id":    taskID,
		"task_title": taskTitle,
		"user_id":    userID,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
