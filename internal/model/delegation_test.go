package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelegationCheck(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d := &Delegation{Authority: "alice", Signer: "bot", CreatedAt: start, ValidUntil: start.Add(30 * time.Second)}

	assert.NoError(t, d.Check("bot", "alice", start.Add(29*time.Second)))
	assert.ErrorIs(t, d.Check("bot", "alice", start.Add(30*time.Second)), ErrDelegationExpired)
	assert.ErrorIs(t, d.Check("mallory", "alice", start), ErrInvalidDelegation)
	assert.ErrorIs(t, d.Check("bot", "carol", start), ErrInvalidDelegation)
}

func TestIsDelegationRefusal(t *testing.T) {
	assert.True(t, IsDelegationRefusal(ErrDelegationNotFound))
	assert.True(t, IsDelegationRefusal(fmt.Errorf("get: %w", ErrDelegationExpired)))
	assert.True(t, IsDelegationRefusal(ErrInvalidDelegation))
	assert.False(t, IsDelegationRefusal(errors.New("connection refused")))
	assert.False(t, IsDelegationRefusal(nil))
}
