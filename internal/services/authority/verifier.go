package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcoot/villefarm/internal/model"
)

// Request identifies who is acting and on whose farm
type Request struct {
	Signer model.IdentityID // identity that signed the call
	Owner  model.IdentityID // farm being addressed

	// DelegationID is set when the signer acts under a delegation token
	DelegationID model.DelegationID
}

// Verifier decides whether a request may mutate records owned by owner.
// Implementations return an error wrapping model.ErrWrongAuthority on refusal;
// any other error is a failure to decide.
type Verifier interface {
	Authorize(ctx context.Context, req Request, owner model.IdentityID) error
}

// DelegationValidator checks a delegation token for a signer and authority
type DelegationValidator interface {
	Validate(ctx context.Context, id model.DelegationID, signer, authority model.IdentityID) (*model.Delegation, error)
}

// Owner accepts only the record owner signing directly
type Owner struct{}

func (Owner) Authorize(_ context.Context, req Request, owner model.IdentityID) error {
	if req.Signer == "" || req.Signer != owner {
		return model.ErrWrongAuthority
	}
	return nil
}

// Delegated accepts a signer holding a live delegation from the owner
type Delegated struct {
	delegations DelegationValidator
}

// NewDelegated creates a Delegated verifier
func NewDelegated(delegations DelegationValidator) *Delegated {
	return &Delegated{delegations: delegations}
}

func (d *Delegated) Authorize(ctx context.Context, req Request, owner model.IdentityID) error {
	if req.DelegationID == "" {
		return model.ErrWrongAuthority
	}
	if _, err := d.delegations.Validate(ctx, req.DelegationID, req.Signer, owner); err != nil {
		if model.IsDelegationRefusal(err) {
			return fmt.Errorf("%w: %w", model.ErrWrongAuthority, err)
		}
		return fmt.Errorf("check delegation: %w", err)
	}
	return nil
}

// AnyOf accepts a request if any of its verifiers does. A verifier that fails
// to decide stops the check with its error; otherwise the last refusal is
// returned when all refuse.
type AnyOf []Verifier

func (a AnyOf) Authorize(ctx context.Context, req Request, owner model.IdentityID) error {
	err := error(model.ErrWrongAuthority)
	for _, v := range a {
		err = v.Authorize(ctx, req, owner)
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrWrongAuthority) {
			return err
		}
	}
	return err
}

// New returns the verifier used by the farm controller: the owner directly,
// or a delegate presenting a valid token
func New(delegations DelegationValidator) Verifier {
	return AnyOf{Owner{}, NewDelegated(delegations)}
}
