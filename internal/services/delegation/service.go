package delegation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/villefarm/internal/dependencies/clock"
	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/storage"
)

// Config holds configuration for the delegation service
type Config struct {
	// MaxDuration caps how long a single delegation may live
	MaxDuration time.Duration
}

// DefaultConfig returns default delegation configuration
func DefaultConfig() Config {
	return Config{
		MaxDuration: 7 * 24 * time.Hour,
	}
}

// Service issues and checks delegation tokens
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger

	maxDuration time.Duration
}

// New creates a new delegation Service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultConfig().MaxDuration
	}
	return &Service{
		storage:     storage,
		clock:       clock,
		logger:      logger.With(slog.String("component", "delegation")),
		maxDuration: cfg.MaxDuration,
	}
}

// Create lets signer act for authority for the given duration
func (s *Service) Create(ctx context.Context, authority, signer model.IdentityID, duration time.Duration) (*model.Delegation, error) {
	if signer == "" || signer == authority {
		return nil, fmt.Errorf("%w: signer must be a different identity", model.ErrInvalidDelegation)
	}
	if duration <= 0 || duration > s.maxDuration {
		return nil, fmt.Errorf("%w: duration must be in (0, %s]", model.ErrInvalidDelegation, s.maxDuration)
	}
	if _, err := s.storage.GetIdentity(ctx, signer); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	d := &model.Delegation{
		ID:         model.DelegationID("dlg_" + uuid.NewString()),
		Authority:  authority,
		Signer:     signer,
		CreatedAt:  now,
		ValidUntil: now.Add(duration),
	}
	if err := s.storage.SaveDelegation(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("delegation created",
		slog.String("delegation_id", string(d.ID)),
		slog.String("authority", string(authority)),
		slog.String("signer", string(signer)),
		slog.Time("valid_until", d.ValidUntil))
	return d, nil
}

// Get returns a delegation by ID
func (s *Service) Get(ctx context.Context, id model.DelegationID) (*model.Delegation, error) {
	return s.storage.GetDelegation(ctx, id)
}

// Validate returns the delegation if it currently lets signer act for authority
func (s *Service) Validate(ctx context.Context, id model.DelegationID, signer, authority model.IdentityID) (*model.Delegation, error) {
	d, err := s.storage.GetDelegation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.Check(signer, authority, s.clock.Now()); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns the delegations granted by authority, oldest first
func (s *Service) List(ctx context.Context, authority model.IdentityID) ([]*model.Delegation, error) {
	return s.storage.ListDelegations(ctx, authority)
}

// Revoke deletes a delegation. Either party to it may revoke.
func (s *Service) Revoke(ctx context.Context, id model.DelegationID, requester model.IdentityID) error {
	d, err := s.storage.GetDelegation(ctx, id)
	if err != nil {
		return err
	}
	if requester != d.Authority && requester != d.Signer {
		return model.ErrWrongAuthority
	}
	if err := s.storage.DeleteDelegation(ctx, id); err != nil {
		return err
	}
	s.logger.Info("delegation revoked",
		slog.String("delegation_id", string(id)),
		slog.String("by", string(requester)))
	return nil
}

// Sweep deletes delegations that have expired and returns how many went
func (s *Service) Sweep(ctx context.Context) (int, error) {
	n, err := s.storage.DeleteExpiredDelegations(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired delegations swept", slog.Int("removed", n))
	}
	return n, nil
}

