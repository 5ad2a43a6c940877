package model

import (
	"encoding/json"
	"time"
)

// SessionLog is one row of the append-only audit trail. Rows are never
// mutated or deleted.
type SessionLog struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"-"`
	Event     LogEvent         `db:"event" json:"event"`
	Detail    *json.RawMessage `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}

type CreateSessionLogParams struct {
	ID        string
	SessionID string
	Event     LogEvent
	Detail    *json.RawMessage
}
