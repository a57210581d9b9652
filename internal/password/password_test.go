package password_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Khaos-s/car-pass/internal/password"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := password.Hash("abcdef")
	require.NoError(t, err)
	require.NotEqual(t, "abcdef", hash)

	ok, err := password.Verify("abcdef", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = password.Verify("wrong-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	first, err := password.Hash("abcdef")
	require.NoError(t, err)
	second, err := password.Hash("abcdef")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyRejectsGarbageHash(t *testing.T) {
	ok, err := password.Verify("abcdef", "not-a-bcrypt-hash")
	require.Error(t, err)
	require.False(t, ok)
}
