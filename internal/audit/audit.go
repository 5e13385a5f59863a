package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Recorder is the write side of the audit trail. Recording is best-effort:
// implementations never fail the caller's flow. sourceEventKey is an optional
// idempotency key; duplicates are dropped.
type Recorder interface {
	Record(ctx context.Context, userID, eventName, sourceEventKey string, props map[string]any)
}

// SourceEventKeyFromRequest returns the client-provided idempotency key, if any.
func SourceEventKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Store persists audit events to the audit_events table. This doubles as the
// dead-letter log for the enrichment notifier: an enrichment_failed row is the
// only trace a swallowed webhook error leaves behind.
type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

func NewStore(db *sqlx.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) Record(ctx context.Context, userID, eventName, sourceEventKey string, props map[string]any) {
	if eventName == "" {
		return
	}

	b, err := json.Marshal(props)
	if err != nil {
		// props that can't marshal must not break the core flow
		return
	}

	var execErr error
	if sourceEventKey != "" {
		_, execErr = s.db.ExecContext(ctx, `
			INSERT INTO audit_events (event_name, event_time, user_id, source_event_key, properties)
			VALUES ($1, $2, $3, $4, $5::jsonb)
			ON CONFLICT (source_event_key) DO NOTHING
		`, eventName, time.Now().UTC(), nullIfEmpty(userID), sourceEventKey, string(b))
	} else {
		_, execErr = s.db.ExecContext(ctx, `
			INSERT INTO audit_events (event_name, event_time, user_id, properties)
			VALUES ($1, $2, $3, $4::jsonb)
		`, eventName, time.Now().UTC(), nullIfEmpty(userID), string(b))
	}
	if execErr != nil {
		s.log.Warn("audit insert failed", "event", eventName, "error", execErr)
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
