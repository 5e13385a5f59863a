package tasks

import (
	"context"
	"errors"
)

// ErrNotFound covers both a missing id and an id owned by someone else; the
// two must be indistinguishable to callers.
var ErrNotFound = errors.New("task not found")

// Store is the task repository. Every owner-path operation is scoped by the
// caller's authenticated user id; UpdateEnrichment is scoped by the (id,
// user_id) pair the external workflow engine supplies.
type Store interface {
	ListByOwner(ctx context.Context, userID string) ([]Task, error)
	Insert(ctx context.Context, userID, title string) (Task, error)
	UpdateFields(ctx context.Context, id, userID string, f Fields) (Task, error)
	UpdateEnrichment(ctx context.Context, id, userID, titleEnriched, descriptionEnriched string) (Task, error)
	Delete(ctx context.Context, id, userID string) error
}
