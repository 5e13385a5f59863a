package tasks

import "time"

// Task is the sole persisted entity. The enrichment columns are written only
// by the callback path; owner-facing updates never touch them.
type Task struct {
	ID                  string    `db:"id" json:"id"`
	UserID              string    `db:"user_id" json:"user_id"`
	Title               string    `db:"title" json:"title"`
	Description         string    `db:"description" json:"description"`
	IsComplete          bool      `db:"is_complete" json:"is_complete"`
	TitleEnriched       *string   `db:"title_enriched" json:"title_enriched"`
	DescriptionEnriched *string   `db:"description_enriched" json:"description_enriched"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// Fields is the owner-editable subset for partial updates. Nil means "leave
// as is".
type Fields struct {
	Title      *string `json:"title"`
	IsComplete *bool   `json:"is_complete"`
}
