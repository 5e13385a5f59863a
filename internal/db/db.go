package db

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(address string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// EnsureSchema creates the tables the app needs if they do not exist yet.
func EnsureSchema(conn *sqlx.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id                   TEXT PRIMARY KEY,
		user_id              TEXT NOT NULL REFERENCES users(id),
		title                TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		is_complete          BOOLEAN NOT NULL DEFAULT FALSE,
		title_enriched       TEXT,
		description_enriched TEXT,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		id               BIGSERIAL PRIMARY KEY,
		event_name       TEXT NOT NULL,
		event_time       TIMESTAMPTZ NOT NULL,
		user_id          TEXT,
		source_event_key TEXT UNIQUE,
		properties       JSONB NOT NULL DEFAULT '{}'::jsonb
	);`

	_, err := conn.Exec(schema)
	return err
}
