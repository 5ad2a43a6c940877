package model

import "time"

// User is a host account. Token issuance (email-code login) happens outside
// this service; only the hashed API token is stored here.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	APITokenHash string    `db:"api_token_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
