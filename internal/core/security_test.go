// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
	assert.NotContains(t, hash, "Str0ng!Pw")

	ok, err := VerifyPassword("Str0ng!Pw", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordUsesFreshSalt(t *testing.T) {
	a, err := HashPassword("Str0ng!Pw")
	require.NoError(t, err)
	b, err := HashPassword("Str0ng!Pw")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.False(t, NeedsRehash(a))
}

func TestVerifyPasswordRejectsGarbage(t *testing.T) {
	tests := map[string]string{
		"not a digest":  "not-a-hash",
		"other scheme":  "$scrypt$v=1$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"short digest":  "$argon2id$v=19$m=1,t=1,p=1$c2FsdA",
		"wrong version": "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"bad salt":      "$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA",
	}

	for name, digest := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := VerifyPassword("x", digest)
			assert.Error(t, err)
			assert.True(t, NeedsRehash(digest))
		})
	}
}

func TestNeedsRehashOnWeakerParams(t *testing.T) {
	weak := argonParams{memory: 8 * 1024, time: 1, threads: 1, keyLen: 32}
	salt := []byte("0123456789abcdef")
	digest := weak.encode(salt, weak.derive("Str0ng!Pw", salt))

	ok, err := VerifyPassword("Str0ng!Pw", digest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, NeedsRehash(digest))

	check, err := CheckPassword("Str0ng!Pw", digest)
	require.NoError(t, err)
	assert.True(t, check.Match)
	assert.False(t, NeedsRehash(check.Rehash))
}

func TestLegacyBcryptDigest(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Pw"), bcrypt.MinCost)
	require.NoError(t, err)

	check, err := CheckPassword("Str0ng!Pw", string(legacy))
	require.NoError(t, err)
	assert.True(t, check.Match)
	require.NotEmpty(t, check.Rehash)
	assert.True(t, strings.HasPrefix(check.Rehash, "$argon2id$"))

	check, err = CheckPassword("wrong", string(legacy))
	require.NoError(t, err)
	assert.Equal(t, PasswordCheck{}, check)
}

func TestCheckPassword(t *testing.T) {
	check, err := CheckPassword("anything", "")
	require.NoError(t, err)
	assert.Equal(t, PasswordCheck{}, check)

	hash, err := HashPassword("Str0ng!Pw")
	require.NoError(t, err)

	check, err = CheckPassword("Str0ng!Pw", hash)
	require.NoError(t, err)
	assert.Equal(t, PasswordCheck{Match: true}, check)

	_, err = CheckPassword("Str0ng!Pw", "$md5$nope")
	assert.ErrorIs(t, err, ErrUnsupportedDigest)
}
