package authority

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/villefarm/internal/model"
)

type stubValidator struct {
	err   error
	calls int
}

func (v *stubValidator) Validate(_ context.Context, id model.DelegationID, signer, authority model.IdentityID) (*model.Delegation, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return &model.Delegation{ID: id, Signer: signer, Authority: authority}, nil
}

type VerifierSuite struct {
	suite.Suite
	validator *stubValidator
	verifier  Verifier
	ctx       context.Context
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.validator = &stubValidator{}
	s.verifier = New(s.validator)
	s.ctx = context.Background()
}

func (s *VerifierSuite) TestOwnerIsAuthorized() {
	err := s.verifier.Authorize(s.ctx, Request{Signer: "alice", Owner: "alice"}, "alice")
	s.NoError(err)
	s.Equal(0, s.validator.calls)
}

func (s *VerifierSuite) TestStrangerWithoutTokenIsRefused() {
	err := s.verifier.Authorize(s.ctx, Request{Signer: "mallory", Owner: "alice"}, "alice")
	s.ErrorIs(err, model.ErrWrongAuthority)
	s.Equal(0, s.validator.calls)
}

func (s *VerifierSuite) TestEmptySignerIsRefused() {
	err := Owner{}.Authorize(s.ctx, Request{}, "")
	s.ErrorIs(err, model.ErrWrongAuthority)
}

func (s *VerifierSuite) TestDelegateWithValidTokenIsAuthorized() {
	err := s.verifier.Authorize(s.ctx, Request{Signer: "bot", Owner: "alice", DelegationID: "d-1"}, "alice")
	s.NoError(err)
	s.Equal(1, s.validator.calls)
}

func (s *VerifierSuite) TestDelegateWithExpiredTokenIsRefused() {
	s.validator.err = model.ErrDelegationExpired

	err := s.verifier.Authorize(s.ctx, Request{Signer: "bot", Owner: "alice", DelegationID: "d-1"}, "alice")
	s.ErrorIs(err, model.ErrWrongAuthority)
	s.ErrorIs(err, model.ErrDelegationExpired)
}

func (s *VerifierSuite) TestOwnerOnlyIgnoresDelegation() {
	err := Owner{}.Authorize(s.ctx, Request{Signer: "bot", Owner: "alice", DelegationID: "d-1"}, "alice")
	s.ErrorIs(err, model.ErrWrongAuthority)
}

func (s *VerifierSuite) TestEmptyAnyOfRefuses() {
	err := AnyOf{}.Authorize(s.ctx, Request{Signer: "alice"}, "alice")
	s.ErrorIs(err, model.ErrWrongAuthority)
}

func (s *VerifierSuite) TestDelegationLookupFailureIsNotARefusal() {
	s.validator.err = errors.New("dial tcp: connection refused")

	err := s.verifier.Authorize(s.ctx, Request{Signer: "bot", Owner: "alice", DelegationID: "d-1"}, "alice")
	s.Require().Error(err)
	s.False(errors.Is(err, model.ErrWrongAuthority))
	s.ErrorIs(err, s.validator.err)
}

func (s *VerifierSuite) TestAnyOfStopsAtLookupFailure() {
	fault := errors.New("conn refused")
	s.validator.err = fault
	later := &stubValidator{}

	v := AnyOf{Owner{}, NewDelegated(s.validator), NewDelegated(later)}
	err := v.Authorize(s.ctx, Request{Signer: "bot", Owner: "alice", DelegationID: "d-1"}, "alice")
	s.ErrorIs(err, fault)
	s.Equal(0, later.calls)
}
