package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientCredential authenticates a machine client of the HTTP API. The
// secret column holds a bcrypt hash, never the plain secret.
type ClientCredential struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ClientID     string    `db:"client_id" json:"client_id"`
	ClientSecret string    `db:"client_secret" json:"-"`
	Description  *string   `db:"description" json:"description,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
