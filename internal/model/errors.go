package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrIdentityNotFound = errors.New("identity not found")

	// Farm record errors
	ErrPlayerNotFound     = errors.New("player not found")
	ErrAlreadyInitialized = errors.New("player is already initialized")
	ErrWrongAuthority     = errors.New("signer is not the owner or a valid delegate")
	ErrNotEnoughEnergy    = errors.New("not enough energy")
	ErrInsufficientFunds  = errors.New("not enough gold")
	ErrUnknownKind        = errors.New("unknown kind")
	ErrPlotOccupied       = errors.New("plot is already occupied")
	ErrNotMature          = errors.New("not ready for harvest yet")
	ErrNothingPlanted     = errors.New("nothing was planted")

	// Delegation errors
	ErrDelegationNotFound = errors.New("delegation not found")
	ErrDelegationExpired  = errors.New("delegation has expired")
	ErrInvalidDelegation  = errors.New("invalid delegation")
)

// Legacy error codes, as reported by the on-chain version of the game
const (
	LegacyNotEnoughEnergy   = "NotEnoughEnergy"
	LegacyNotEnoughGold     = "NotEnoughGold"
	LegacyNotReadyYet       = "NotReadyYet"
	LegacyNothingWasPlanted = "NothingWasPlanted"
	LegacyWrongAuthority    = "WrongAuthority"
)

var legacyCodes = []struct {
	err  error
	code string
}{
	{ErrNotEnoughEnergy, LegacyNotEnoughEnergy},
	{ErrInsufficientFunds, LegacyNotEnoughGold},
	{ErrUnknownKind, LegacyNotEnoughGold},
	// an empty plot fails the reward lookup before the NothingWasPlanted check
	{ErrNothingPlanted, LegacyNotEnoughGold},
	{ErrPlotOccupied, LegacyNotReadyYet},
	{ErrNotMature, LegacyNotReadyYet},
	{ErrWrongAuthority, LegacyWrongAuthority},
}

// LegacyCode maps a game error onto the coarser legacy code set.
// Returns "" for errors that have no legacy equivalent.
func LegacyCode(err error) string {
	for _, lc := range legacyCodes {
		if errors.Is(err, lc.err) {
			return lc.code
		}
	}
	return ""
}
