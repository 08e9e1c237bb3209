package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPBKDF2_KnownVectors(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		// P="password", S="salt", c=1.
		{"sha256", "pbkdf2:sha256:1$salt$120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b"},
		// RFC 6070 first vector.
		{"sha1", "pbkdf2:sha1:1$salt$0c60c80f961f0e71f3a9b524af6012062fe037a6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPBKDF2("password", tt.encoded)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = VerifyPBKDF2("Password", tt.encoded)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestHashPBKDF2_RoundTrip(t *testing.T) {
	encoded, err := HashPBKDF2("Demo123!", "Xy7salt", "sha512", 1000)
	require.NoError(t, err)

	ok, err := VerifyPBKDF2("Demo123!", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPBKDF2_MatchesVector(t *testing.T) {
	encoded, err := HashPBKDF2("password", "salt", "sha256", 1)
	require.NoError(t, err)
	assert.Equal(t, "pbkdf2:sha256:1$salt$120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b", encoded)
}

func TestHashPBKDF2_Rejects(t *testing.T) {
	_, err := HashPBKDF2("p", "salt", "md5", 1)
	assert.ErrorIs(t, err, ErrUnsupportedDigest)

	_, err = HashPBKDF2("p", "", "sha256", 1)
	assert.ErrorIs(t, err, ErrMalformedHash)

	_, err = HashPBKDF2("p", "salt", "sha256", 0)
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestVerifyPBKDF2_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		want    error
	}{
		{"no separators", "pbkdf2:sha256:1", ErrMalformedHash},
		{"empty salt", "pbkdf2:sha256:1$$abcd", ErrMalformedHash},
		{"not pbkdf2", "scrypt:32768:8:1$salt$abcd", ErrMalformedHash},
		{"unknown digest", "pbkdf2:md5:1$salt$abcd", ErrUnsupportedDigest},
		{"bad iterations", "pbkdf2:sha256:abc$salt$abcd", ErrMalformedHash},
		{"negative iterations", "pbkdf2:sha256:-5$salt$abcd", ErrMalformedHash},
		{"bad hex", "pbkdf2:sha256:1$salt$zz", ErrMalformedHash},
		{"missing digest", "pbkdf2$salt$abcd", ErrMalformedHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPBKDF2("password", tt.encoded)
			assert.False(t, ok)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
