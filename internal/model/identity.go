package model

import "time"

// IdentityID uniquely identifies a principal (owner or signer) across the system
type IdentityID string

// Identity is an authenticated principal that can own a farm or sign for one
type Identity struct {
	ID          IdentityID
	DisplayName string
	IsGuest     bool // true for identities without a credential
	CreatedAt   time.Time
}

// Credential holds login data for a registered identity
// Stored separately so the hash never travels with a session
type Credential struct {
	IdentityID   IdentityID
	Username     string // immutable
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
