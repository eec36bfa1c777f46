package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewVerifierGenerated("snapstream-test")
	require.NoError(t, err)

	token, err := v.IssueToken("user-1", "operator")
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "operator", claims.Role)
	assert.True(t, claims.Privileged())
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v, err := NewVerifierGenerated("snapstream-test")
	require.NoError(t, err)

	_, err = v.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	issuing, err := NewVerifierGenerated("snapstream-test")
	require.NoError(t, err)
	verifying, err := NewVerifierGenerated("snapstream-test")
	require.NoError(t, err)

	token, err := issuing.IssueToken("user-1", "viewer")
	require.NoError(t, err)

	_, err = verifying.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestViewerIsNotPrivileged(t *testing.T) {
	c := &Claims{Role: "viewer"}
	assert.False(t, c.Privileged())
}
