package database

import "context"

// Schema bootstrap. Statements are idempotent so they run on every start.
// Logs and recordings carry foreign keys to sessions; logs are append-only.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		api_token_hash TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'waiting',
		host_user_id TEXT NOT NULL REFERENCES users(id),
		client_name TEXT,
		client_ip TEXT,
		host_offer TEXT,
		client_answer TEXT,
		client_offer TEXT,
		host_answer TEXT,
		host_ice_candidates JSONB,
		client_ice_candidates JSONB,
		start_notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
		end_notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
		auto_record BOOLEAN NOT NULL DEFAULT FALSE,
		calendar_event_id TEXT,
		calendar_source TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL,
		connected_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_live_expiry
		ON sessions (expires_at)
		WHERE status NOT IN ('disconnected', 'expired')`,
	`CREATE TABLE IF NOT EXISTS session_logs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		event TEXT NOT NULL,
		detail JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_logs_session
		ON session_logs (session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		file_name TEXT NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
