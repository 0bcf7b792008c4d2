package model

import (
	"errors"
	"time"
)

// DelegationID identifies a delegation token
type DelegationID string

// Delegation lets Signer act on behalf of Authority until ValidUntil
type Delegation struct {
	ID         DelegationID
	Authority  IdentityID // the owner who granted the delegation
	Signer     IdentityID // the identity allowed to act for Authority
	CreatedAt  time.Time
	ValidUntil time.Time
}

// IsValidAt returns true if the delegation has not expired at t
func (d *Delegation) IsValidAt(t time.Time) bool {
	return t.Before(d.ValidUntil)
}

// Check returns nil if the delegation lets signer act for authority at t,
// ErrInvalidDelegation if it names other parties, or ErrDelegationExpired
func (d *Delegation) Check(signer, authority IdentityID, t time.Time) error {
	if d.Signer != signer || d.Authority != authority {
		return ErrInvalidDelegation
	}
	if !d.IsValidAt(t) {
		return ErrDelegationExpired
	}
	return nil
}

// IsDelegationRefusal reports whether err means a delegation does not grant
// authority, as opposed to a failure reading it
func IsDelegationRefusal(err error) bool {
	return errors.Is(err, ErrDelegationNotFound) ||
		errors.Is(err, ErrDelegationExpired) ||
		errors.Is(err, ErrInvalidDelegation)
}
