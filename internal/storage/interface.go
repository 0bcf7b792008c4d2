package storage

import (
	"context"
	"time"

	"github.com/mcoot/villefarm/internal/model"
)

// UpdateFunc mutates a farm in place. Returning an error aborts the update and
// nothing is written.
type UpdateFunc func(farm *model.Farm) error

// Storage defines the interface for data persistence
type Storage interface {
	// Identity operations
	SaveIdentity(ctx context.Context, identity *model.Identity) error
	GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error)

	// Credential operations
	SaveCredential(ctx context.Context, cred *model.Credential) error
	GetCredentialByUsername(ctx context.Context, username string) (*model.Credential, error)

	// Farm operations. A farm's player and plot records are only ever created,
	// read and written together.

	// CreateFarm stores a new record pair, failing with
	// model.ErrAlreadyInitialized if either record exists
	CreateFarm(ctx context.Context, farm *model.Farm) error
	// GetFarm returns model.ErrPlayerNotFound if the pair does not exist
	GetFarm(ctx context.Context, owner model.IdentityID) (*model.Farm, error)
	FarmExists(ctx context.Context, owner model.IdentityID) (bool, error)
	// UpdateFarm runs fn against the current pair with exclusive access and
	// commits the result, returning the committed farm
	UpdateFarm(ctx context.Context, owner model.IdentityID, fn UpdateFunc) (*model.Farm, error)

	// Delegation operations
	SaveDelegation(ctx context.Context, d *model.Delegation) error
	GetDelegation(ctx context.Context, id model.DelegationID) (*model.Delegation, error)
	DeleteDelegation(ctx context.Context, id model.DelegationID) error
	ListDelegations(ctx context.Context, authority model.IdentityID) ([]*model.Delegation, error)
	// DeleteExpiredDelegations removes delegations no longer valid at now and
	// returns how many were removed
	DeleteExpiredDelegations(ctx context.Context, now time.Time) (int, error)
}
