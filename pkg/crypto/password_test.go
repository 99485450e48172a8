package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testParams() Argon2Parameters {
	// Low-cost parameters keep the test suite fast.
	return Argon2Parameters{
		Memory:     8 * 1024,
		Time:       1,
		Threads:    1,
		SaltLength: 16,
		KeyLength:  16,
	}
}

func TestHashPasswordProducesPHCFormat(t *testing.T) {
	hash, err := HashPassword("correct horse battery", testParams())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v="))
	require.Len(t, strings.Split(hash, "$"), 6)
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret-password", testParams())
	require.NoError(t, err)

	require.True(t, VerifyPassword("secret-password", hash))
	require.False(t, VerifyPassword("wrong-password", hash))
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	cases := []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$YWJjZA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$YWJjZA",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdHNhbHRzYWx0c2FsdA$YWJjZA",
	}

	for _, hash := range cases {
		require.False(t, VerifyPassword("anything", hash), "hash %q should not verify", hash)
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, err := HashPassword("same-password", testParams())
	require.NoError(t, err)

	second, err := HashPassword("same-password", testParams())
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, VerifyPassword("same-password", first))
	require.True(t, VerifyPassword("same-password", second))
}

func TestArgon2ParametersValidate(t *testing.T) {
	require.NoError(t, DefaultArgon2Params().Validate())

	invalid := testParams()
	invalid.Time = 0
	require.Error(t, invalid.Validate())

	invalid = testParams()
	invalid.SaltLength = 8
	require.Error(t, invalid.Validate())
}

func TestUnusablePasswordHashNeverVerifies(t *testing.T) {
	hash, err := UnusablePasswordHash()
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	require.False(t, VerifyPassword("", hash))
	require.False(t, VerifyPassword("password1234", hash))

	other, err := UnusablePasswordHash()
	require.NoError(t, err)
	require.NotEqual(t, hash, other)
}
