// Package storagetest holds behaviour checks shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/storage"
)

// Suite runs the storage contract against the backend returned by NewStorage.
// Backends embed it and set NewStorage in their own SetupTest before calling
// Suite.SetupTest.
type Suite struct {
	suite.Suite
	NewStorage func() storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStorage, "NewStorage must be set")
	s.Storage = s.NewStorage()
	s.Ctx = context.Background()
}

var errAbort = errors.New("abort")

func newFarm(owner model.IdentityID) *model.Farm {
	return &model.Farm{
		Player: &model.Player{Owner: owner, Energy: 10, Gold: 5, LastLogin: 1000},
		Plot:   &model.Plot{Owner: owner},
	}
}

// Identity tests

func (s *Suite) TestSaveAndGetIdentity() {
	identity := &model.Identity{
		ID:          "identity-1",
		DisplayName: "Alice",
		IsGuest:     true,
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
	}
	s.Require().NoError(s.Storage.SaveIdentity(s.Ctx, identity))

	got, err := s.Storage.GetIdentity(s.Ctx, "identity-1")
	s.Require().NoError(err)
	s.Equal(identity.DisplayName, got.DisplayName)
	s.True(got.IsGuest)
	s.True(identity.CreatedAt.Equal(got.CreatedAt))
}

func (s *Suite) TestGetIdentityNotFound() {
	_, err := s.Storage.GetIdentity(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *Suite) TestSaveAndGetCredential() {
	cred := &model.Credential{
		IdentityID:   "identity-1",
		Username:     "alice",
		PasswordHash: "hash",
		CreatedAt:    time.Unix(1700000000, 0).UTC(),
		UpdatedAt:    time.Unix(1700000000, 0).UTC(),
	}
	s.Require().NoError(s.Storage.SaveCredential(s.Ctx, cred))

	got, err := s.Storage.GetCredentialByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("identity-1"), got.IdentityID)
	s.Equal("hash", got.PasswordHash)

	_, err = s.Storage.GetCredentialByUsername(s.Ctx, "bob")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

// Farm tests

func (s *Suite) TestCreateAndGetFarm() {
	s.Require().NoError(s.Storage.CreateFarm(s.Ctx, newFarm("owner-1")))

	farm, err := s.Storage.GetFarm(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("owner-1"), farm.Player.Owner)
	s.Equal(uint64(5), farm.Player.Gold)
	s.Equal(uint64(10), farm.Player.Energy)
	s.Equal(int64(1000), farm.Player.LastLogin)
	s.True(farm.Plot.IsEmpty())

	exists, err := s.Storage.FarmExists(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *Suite) TestCreateFarmTwiceFails() {
	s.Require().NoError(s.Storage.CreateFarm(s.Ctx, newFarm("owner-1")))

	second := newFarm("owner-1")
	second.Player.Gold = 999
	err := s.Storage.CreateFarm(s.Ctx, second)
	s.ErrorIs(err, model.ErrAlreadyInitialized)

	farm, err := s.Storage.GetFarm(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.Equal(uint64(5), farm.Player.Gold)
}

func (s *Suite) TestGetFarmNotFound() {
	_, err := s.Storage.GetFarm(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	exists, err := s.Storage.FarmExists(s.Ctx, "nobody")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *Suite) TestUpdateFarmCommits() {
	s.Require().NoError(s.Storage.CreateFarm(s.Ctx, newFarm("owner-1")))

	updated, err := s.Storage.UpdateFarm(s.Ctx, "owner-1", func(farm *model.Farm) error {
		farm.Player.Gold = 0
		farm.Plot.Occupant = model.KindPeasant
		farm.Plot.PlantedAt = 1000
		return nil
	})
	s.Require().NoError(err)
	s.Equal(uint64(0), updated.Player.Gold)

	farm, err := s.Storage.GetFarm(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.Equal(uint64(0), farm.Player.Gold)
	s.Equal(model.KindPeasant, farm.Plot.Occupant)
	s.Equal(int64(1000), farm.Plot.PlantedAt)
}

func (s *Suite) TestUpdateFarmAbortLeavesStateUnchanged() {
	s.Require().NoError(s.Storage.CreateFarm(s.Ctx, newFarm("owner-1")))

	_, err := s.Storage.UpdateFarm(s.Ctx, "owner-1", func(farm *model.Farm) error {
		farm.Player.Gold = 0
		farm.Plot.Occupant = model.KindPeasant
		return errAbort
	})
	s.ErrorIs(err, errAbort)

	farm, err := s.Storage.GetFarm(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.Equal(uint64(5), farm.Player.Gold)
	s.True(farm.Plot.IsEmpty())
}

func (s *Suite) TestUpdateFarmNotFound() {
	called := false
	_, err := s.Storage.UpdateFarm(s.Ctx, "nobody", func(farm *model.Farm) error {
		called = true
		return nil
	})
	s.ErrorIs(err, model.ErrPlayerNotFound)
	s.False(called)
}

func (s *Suite) TestUpdateFarmIsExclusive() {
	s.Require().NoError(s.Storage.CreateFarm(s.Ctx, newFarm("owner-1")))

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Storage.UpdateFarm(s.Ctx, "owner-1", func(farm *model.Farm) error {
				farm.Player.Gold++
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	farm, err := s.Storage.GetFarm(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.Equal(uint64(5+writers), farm.Player.Gold)
}

func (s *Suite) TestFarmsAreIsolated() {
	s.Require().NoError(s.Storage.CreateFarm(s.Ctx, newFarm("owner-1")))
	s.Require().NoError(s.Storage.CreateFarm(s.Ctx, newFarm("owner-2")))

	_, err := s.Storage.UpdateFarm(s.Ctx, "owner-1", func(farm *model.Farm) error {
		farm.Player.Gold = 100
		return nil
	})
	s.Require().NoError(err)

	other, err := s.Storage.GetFarm(s.Ctx, "owner-2")
	s.Require().NoError(err)
	s.Equal(uint64(5), other.Player.Gold)
}

// Delegation tests

func (s *Suite) newDelegation(id model.DelegationID, authority model.IdentityID, created time.Time, ttl time.Duration) *model.Delegation {
	d := &model.Delegation{
		ID:         id,
		Authority:  authority,
		Signer:     "signer-1",
		CreatedAt:  created,
		ValidUntil: created.Add(ttl),
	}
	s.Require().NoError(s.Storage.SaveDelegation(s.Ctx, d))
	return d
}

func (s *Suite) TestSaveAndGetDelegation() {
	base := time.Unix(1700000000, 0).UTC()
	d := s.newDelegation("d-1", "owner-1", base, time.Hour)

	got, err := s.Storage.GetDelegation(s.Ctx, "d-1")
	s.Require().NoError(err)
	s.Equal(d.Authority, got.Authority)
	s.Equal(d.Signer, got.Signer)
	s.True(d.ValidUntil.Equal(got.ValidUntil))
}

func (s *Suite) TestGetDelegationNotFound() {
	_, err := s.Storage.GetDelegation(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrDelegationNotFound)
}

func (s *Suite) TestDeleteDelegation() {
	base := time.Unix(1700000000, 0).UTC()
	s.newDelegation("d-1", "owner-1", base, time.Hour)

	s.Require().NoError(s.Storage.DeleteDelegation(s.Ctx, "d-1"))
	_, err := s.Storage.GetDelegation(s.Ctx, "d-1")
	s.ErrorIs(err, model.ErrDelegationNotFound)

	list, err := s.Storage.ListDelegations(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.Empty(list)

	// Deleting again is not an error
	s.NoError(s.Storage.DeleteDelegation(s.Ctx, "d-1"))
}

func (s *Suite) TestListDelegationsByAuthority() {
	base := time.Unix(1700000000, 0).UTC()
	s.newDelegation("d-2", "owner-1", base.Add(time.Second), time.Hour)
	s.newDelegation("d-1", "owner-1", base, time.Hour)
	s.newDelegation("d-3", "owner-2", base, time.Hour)

	list, err := s.Storage.ListDelegations(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(model.DelegationID("d-1"), list[0].ID)
	s.Equal(model.DelegationID("d-2"), list[1].ID)

	empty, err := s.Storage.ListDelegations(s.Ctx, "owner-3")
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *Suite) TestDeleteExpiredDelegations() {
	base := time.Unix(1700000000, 0).UTC()
	s.newDelegation("short", "owner-1", base, time.Minute)
	s.newDelegation("exact", "owner-1", base, 2*time.Minute)
	s.newDelegation("long", "owner-1", base, time.Hour)

	// "exact" expires at base+2m, which is no longer valid at that instant
	removed, err := s.Storage.DeleteExpiredDelegations(s.Ctx, base.Add(2*time.Minute))
	s.Require().NoError(err)
	s.Equal(2, removed)

	list, err := s.Storage.ListDelegations(s.Ctx, "owner-1")
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(model.DelegationID("long"), list[0].ID)

	removed, err = s.Storage.DeleteExpiredDelegations(s.Ctx, base.Add(2*time.Minute))
	s.Require().NoError(err)
	s.Equal(0, removed)
}
