package model

import "time"

// Recording links a session to a stored media blob. Capture and blob storage
// live outside this service; this is metadata only.
type Recording struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"-"`
	FileName  string    `db:"file_name" json:"fileName"`
	SizeBytes int64     `db:"size_bytes" json:"sizeBytes"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
