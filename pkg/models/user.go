// Package models contains shared data models used across the Nexis backend.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the owning account for every other entity. Credential issuance
// happens out of band; only the bcrypt hash of the API key is stored.
type User struct {
	ID           uuid.UUID `db:"id"             json:"id"`
	Name         string    `db:"name"           json:"name"`
	Email        string    `db:"email"          json:"email"`
	APIKeyHash   string    `db:"api_key_hash"   json:"-"`
	APIKeyPrefix string    `db:"api_key_prefix" json:"-"`
	CreatedAt    time.Time `db:"created_at"     json:"created_at"`
}
