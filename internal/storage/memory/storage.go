package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Records are copied on the way in and out so callers never share state.
type Storage struct {
	mu sync.RWMutex

	identities  map[model.IdentityID]*model.Identity
	credentials map[string]*model.Credential // keyed by username
	players     map[model.IdentityID]*model.Player
	plots       map[model.IdentityID]*model.Plot
	delegations map[model.DelegationID]*model.Delegation
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		identities:  make(map[model.IdentityID]*model.Identity),
		credentials: make(map[string]*model.Credential),
		players:     make(map[model.IdentityID]*model.Player),
		plots:       make(map[model.IdentityID]*model.Plot),
		delegations: make(map[model.DelegationID]*model.Delegation),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *identity
	s.identities[identity.ID] = &c
	return nil
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	c := *identity
	return &c, nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cred
	s.credentials[cred.Username] = &c
	return nil
}

func (s *Storage) GetCredentialByUsername(ctx context.Context, username string) (*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[username]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	c := *cred
	return &c, nil
}

// Farm operations

func (s *Storage) CreateFarm(ctx context.Context, farm *model.Farm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := farm.Player.Owner
	if _, ok := s.players[owner]; ok {
		return model.ErrAlreadyInitialized
	}
	if _, ok := s.plots[owner]; ok {
		return model.ErrAlreadyInitialized
	}
	s.players[owner] = farm.Player.Clone()
	s.plots[owner] = farm.Plot.Clone()
	return nil
}

func (s *Storage) GetFarm(ctx context.Context, owner model.IdentityID) (*model.Farm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getFarmLocked(owner)
}

func (s *Storage) FarmExists(ctx context.Context, owner model.IdentityID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.players[owner]
	return ok, nil
}

func (s *Storage) UpdateFarm(ctx context.Context, owner model.IdentityID, fn storage.UpdateFunc) (*model.Farm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	farm, err := s.getFarmLocked(owner)
	if err != nil {
		return nil, err
	}
	if err := fn(farm); err != nil {
		return nil, err
	}

	s.players[owner] = farm.Player.Clone()
	s.plots[owner] = farm.Plot.Clone()
	return farm, nil
}

func (s *Storage) getFarmLocked(owner model.IdentityID) (*model.Farm, error) {
	player, ok := s.players[owner]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	plot, ok := s.plots[owner]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return &model.Farm{Player: player.Clone(), Plot: plot.Clone()}, nil
}

// Delegation operations

func (s *Storage) SaveDelegation(ctx context.Context, d *model.Delegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	s.delegations[d.ID] = &c
	return nil
}

func (s *Storage) GetDelegation(ctx context.Context, id model.DelegationID) (*model.Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.delegations[id]
	if !ok {
		return nil, model.ErrDelegationNotFound
	}
	c := *d
	return &c, nil
}

func (s *Storage) DeleteDelegation(ctx context.Context, id model.DelegationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.delegations, id)
	return nil
}

func (s *Storage) ListDelegations(ctx context.Context, authority model.IdentityID) ([]*model.Delegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []*model.Delegation{}
	for _, d := range s.delegations {
		if d.Authority == authority {
			c := *d
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Storage) DeleteExpiredDelegations(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, d := range s.delegations {
		if !d.IsValidAt(now) {
			delete(s.delegations, id)
			removed++
		}
	}
	return removed, nil
}
