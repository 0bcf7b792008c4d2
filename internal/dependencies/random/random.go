// Package random supplies the randomness behind identity IDs, session tokens
// and the random planting strategy. Tests swap in mocks.MockRandom.
package random

import (
	"crypto/rand"
	"math/big"
)

// Alphabet is the character set for identity IDs and session tokens
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	identityIDLength   = 22
	sessionTokenLength = 32
)

// Random can be mocked for testing
type Random interface {
	// Intn returns a value in [0, n)
	Intn(n int) int

	// String returns length characters drawn from alphabet
	String(length int, alphabet string) string
}

// Crypto draws from crypto/rand
type Crypto struct{}

// New creates a Crypto source
func New() *Crypto {
	return &Crypto{}
}

// Intn returns a uniform value in [0, n), or 0 when n <= 0
func (Crypto) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails if the OS source is broken
		panic("random: " + err.Error())
	}
	return int(v.Int64())
}

// String returns length characters drawn uniformly from alphabet
func (c Crypto) String(length int, alphabet string) string {
	if length <= 0 || alphabet == "" {
		return ""
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = alphabet[c.Intn(len(alphabet))]
	}
	return string(out)
}

// IdentityID returns "id_" followed by random characters
func IdentityID(r Random) string {
	return "id_" + r.String(identityIDLength, Alphabet)
}

// SessionToken returns "sess_" followed by random characters
func SessionToken(r Random) string {
	return "sess_" + r.String(sessionTokenLength, Alphabet)
}
