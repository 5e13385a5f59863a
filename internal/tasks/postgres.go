package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"shadowlights-backend/internal/realtime"
)

// Feed receives a change event after every successful mutation. The hub
// satisfies this.
type Feed interface {
	Publish(ev realtime.Event)
}

type PostgresStore struct {
	db   *sqlx.DB
	feed Feed
}

func NewPostgresStore(db *sqlx.DB, feed Feed) *PostgresStore {
	return &PostgresStore{db: db, feed: feed}
}

func (s *PostgresStore) ListByOwner(ctx context.Context, userID string) ([]Task, error) {
	const q = `
		SELECT id, user_id, title, description, is_complete,
		       title_enriched, description_enriched, created_at
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var out []Task
	if err := s.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, userID, title string) (Task, error) {
	const q = `
		INSERT INTO tasks (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, title, description, is_complete,
		          title_enriched, description_enriched, created_at
	`

	var t Task
	if err := s.db.GetContext(ctx, &t, q, uuid.NewString(), userID, title); err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}

	s.feed.Publish(realtime.Event{Type: realtime.EventInsert, TaskID: t.ID})
	return t, nil
}

func (s *PostgresStore) UpdateFields(ctx context.Context, id, userID string, f Fields) (Task, error) {
	const q = `
		UPDATE tasks
		SET title       = COALESCE($3, title),
		    is_complete = COALESCE($4, is_complete)
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, description, is_complete,
		          title_enriched, description_enriched, created_at
	`

	var t Task
	err := s.db.GetContext(ctx, &t, q, id, userID, f.Title, f.IsComplete)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}

	s.feed.Publish(realtime.Event{Type: realtime.EventUpdate, TaskID: t.ID})
	return t, nil
}

func (s *PostgresStore) UpdateEnrichment(ctx context.Context, id, userID, titleEnriched, descriptionEnriched string) (Task, error) {
	const q = `
		UPDATE tasks
		SET title_enriched = $3, description_enriched = $4
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, description, is_complete,
		          title_enriched, description_enriched, created_at
	`

	var t Task
	err := s.db.GetContext(ctx, &t, q, id, userID, titleEnriched, descriptionEnriched)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("update enrichment: %w", err)
	}

	s.feed.Publish(realtime.Event{Type: realtime.EventUpdate, TaskID: t.ID})
	return t, nil
}

// Delete is a silent no-op when the row is missing or owned by someone else.
func (s *PostgresStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	if aff, _ := res.RowsAffected(); aff > 0 {
		s.feed.Publish(realtime.Event{Type: realtime.EventDelete, TaskID: id})
	}
	return nil
}
