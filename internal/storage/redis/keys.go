package redis

import (
	"fmt"

	"github.com/mcoot/villefarm/internal/model"
)

// Key prefix for all farm data
const keyPrefix = "villefarm"

// identityKey returns the Redis key for an Identity
func identityKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:identity:%s", keyPrefix, id)
}

// credentialKey returns the Redis key for a Credential, indexed by username
func credentialKey(username string) string {
	return fmt.Sprintf("%s:credential:%s", keyPrefix, username)
}

// playerKey returns the Redis key for a Player record
func playerKey(owner model.IdentityID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, owner)
}

// plotKey returns the Redis key for a Plot record
func plotKey(owner model.IdentityID) string {
	return fmt.Sprintf("%s:plot:%s", keyPrefix, owner)
}

// delegationKey returns the Redis key for a Delegation
func delegationKey(id model.DelegationID) string {
	return fmt.Sprintf("%s:delegation:%s", keyPrefix, id)
}

// delegationsByAuthorityKey returns the Redis key for the SET of delegation IDs granted by an authority
func delegationsByAuthorityKey(authority model.IdentityID) string {
	return fmt.Sprintf("%s:idx:delegations:%s", keyPrefix, authority)
}

// delegationExpiryKey returns the Redis key for the ZSET of delegation IDs scored by expiry
func delegationExpiryKey() string {
	return fmt.Sprintf("%s:idx:delegation_expiry", keyPrefix)
}
