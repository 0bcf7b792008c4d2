package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/villefarm/internal/dependencies/mocks"
	"github.com/mcoot/villefarm/internal/storage/memory"
	"github.com/mcoot/villefarm/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.service = New(s.storage, s.clock, s.random, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

// CreateGuest tests

func (s *ServiceSuite) TestCreateGuestSucceeds() {
	session, err := s.service.CreateGuest(s.ctx, "Alice")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal("Alice", session.Identity.DisplayName)
	s.True(session.Identity.IsGuest)
	s.NotEmpty(session.IdentityID)
}

func (s *ServiceSuite) TestCreateGuestUsesRandomID() {
	s.random.QueueString("alice00000000000000000", "token00000000000000000")

	session, err := s.service.CreateGuest(s.ctx, "Alice")
	s.Require().NoError(err)

	s.Equal("id_alice00000000000000000", string(session.IdentityID))
	s.Equal("sess_token00000000000000000", session.Token)
}

func (s *ServiceSuite) TestCreateGuestPersistsIdentity() {
	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	identity, err := s.storage.GetIdentity(s.ctx, session.IdentityID)
	s.Require().NoError(err)
	s.Equal("Alice", identity.DisplayName)
}

func (s *ServiceSuite) TestGuestsGetDistinctIdentities() {
	a, _ := s.service.CreateGuest(s.ctx, "Alice")
	b, _ := s.service.CreateGuest(s.ctx, "Bob")

	s.NotEqual(a.IdentityID, b.IdentityID)
	s.NotEqual(a.Token, b.Token)
}

// Register tests

func (s *ServiceSuite) TestRegisterSucceeds() {
	session, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.Equal("Alice", session.Identity.DisplayName)
	s.False(session.Identity.IsGuest)
}

func (s *ServiceSuite) TestRegisterDefaultsDisplayName() {
	session, err := s.service.Register(s.ctx, "alice", "password123", "")
	s.Require().NoError(err)
	s.Equal("alice", session.Identity.DisplayName)
}

func (s *ServiceSuite) TestRegisterHashesPassword() {
	_, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	cred, err := s.storage.GetCredentialByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotEqual("password123", cred.PasswordHash)
	s.NotEmpty(cred.PasswordHash)
}

func (s *ServiceSuite) TestRegisterDuplicateUsernameFails() {
	_, _ = s.service.Register(s.ctx, "alice", "password123", "Alice")

	_, err := s.service.Register(s.ctx, "alice", "different99", "Alice 2")
	s.ErrorIs(err, ErrUsernameExists)
}

func (s *ServiceSuite) TestRegisterRejectsBadInput() {
	_, err := s.service.Register(s.ctx, "  ", "password123", "")
	s.ErrorIs(err, ErrInvalidUsername)

	_, err = s.service.Register(s.ctx, "alice", "short", "")
	s.ErrorIs(err, ErrPasswordTooShort)
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	registered, _ := s.service.Register(s.ctx, "alice", "password123", "Alice")

	session, err := s.service.Login(s.ctx, "alice", "password123")
	s.Require().NoError(err)
	s.Equal(registered.IdentityID, session.IdentityID)
	s.NotEqual(registered.Token, session.Token)
}

func (s *ServiceSuite) TestLoginWrongPasswordFails() {
	_, _ = s.service.Register(s.ctx, "alice", "password123", "Alice")

	_, err := s.service.Login(s.ctx, "alice", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginUnknownUserFails() {
	_, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// Session tests

func (s *ServiceSuite) TestValidateSessionUnknownToken() {
	_, err := s.service.ValidateSession("nope")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestSessionExpires() {
	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	s.clock.Advance(24 * time.Hour)
	_, err := s.service.ValidateSession(session.Token)
	s.Require().NoError(err)

	s.clock.Advance(time.Second)
	_, err = s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestInvalidateSession() {
	session, _ := s.service.CreateGuest(s.ctx, "Alice")

	s.service.InvalidateSession(session.Token)

	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestCleanExpiredSessions() {
	old, _ := s.service.CreateGuest(s.ctx, "Old")
	s.clock.Advance(12 * time.Hour)
	fresh, _ := s.service.CreateGuest(s.ctx, "Fresh")
	s.clock.Advance(13 * time.Hour)

	removed := s.service.CleanExpiredSessions()
	s.Equal(1, removed)

	_, err := s.service.ValidateSession(old.Token)
	s.ErrorIs(err, ErrInvalidSession)
	_, err = s.service.ValidateSession(fresh.Token)
	s.NoError(err)
}
