package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundtrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, err := issuer.Issue(KindUser, "user-42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sub, err := issuer.Verify(token, KindUser)
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestTokenKindMismatch(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, err := issuer.Issue(KindDoctor, "doc-1")
	require.NoError(t, err)

	_, err = issuer.Verify(token, KindUser)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify(token, KindAdmin)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a").Issue(KindUser, "user-1")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b").Verify(token, KindUser)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	for _, tok := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		_, err := issuer.Verify(tok, KindUser)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
	assert.False(t, CheckPassword("not-a-hash", "anything"))
}
