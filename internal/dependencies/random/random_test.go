package random

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntnRange(t *testing.T) {
	r := New()
	for range 100 {
		v := r.Intn(5)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 5)
	}
	assert.Equal(t, 0, r.Intn(0))
}

func TestIdentifiers(t *testing.T) {
	r := New()

	id := IdentityID(r)
	assert.True(t, strings.HasPrefix(id, "id_"))
	assert.Len(t, id, len("id_")+identityIDLength)

	token := SessionToken(r)
	assert.True(t, strings.HasPrefix(token, "sess_"))
	assert.Len(t, token, len("sess_")+sessionTokenLength)
	assert.NotEqual(t, token, SessionToken(r))
}

func TestStringUsesAlphabet(t *testing.T) {
	s := New().String(64, "ab")
	assert.Len(t, s, 64)
	assert.Empty(t, strings.Trim(s, "ab"))
	assert.Empty(t, New().String(10, ""))
}
