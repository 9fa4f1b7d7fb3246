package secrets

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("passphrase", "0123456789abcdef", "pepper")
	require.NoError(t, err)
	return c
}

func TestEncryptStaticKnownVector(t *testing.T) {
	c := newTestCodec(t)

	// Produced with PBKDF2-SHA1(passphrase, pepper, 1000) and openssl aes-256-cbc.
	got, err := c.EncryptStatic("AKIAEXAMPLE")
	require.NoError(t, err)
	assert.Equal(t, "kN0Ls6XlFufsQsIbeReJzQ==", got)

	plain, err := c.Decrypt("W1Evbe6PE+n1jS/q6UvXqA==")
	require.NoError(t, err)
	assert.Equal(t, "wJalrSECRET", plain)
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	inputs := []string{
		"",
		"a",
		"exactly16bytes!!",
		strings.Repeat("x", 100),
		"ключ доступа",
	}
	for _, in := range inputs {
		enc, err := c.Encrypt(in)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(enc, "v2:"))
		dec, err := c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, in, dec)

		enc, err = c.EncryptStatic(in)
		require.NoError(t, err)
		dec, err = c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, in, dec)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	c := newTestCodec(t)
	a, err := c.Encrypt("same value")
	require.NoError(t, err)
	b, err := c.Encrypt("same value")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	s1, _ := c.EncryptStatic("same value")
	s2, _ := c.EncryptStatic("same value")
	assert.Equal(t, s1, s2)
}

func TestNewCodecMissingMaterial(t *testing.T) {
	cases := []struct{ key, iv, salt string }{
		{"", "0123456789abcdef", "s"},
		{"k", "", "s"},
		{"k", "0123456789abcdef", ""},
	}
	for _, tc := range cases {
		_, err := NewCodec(tc.key, tc.iv, tc.salt)
		assert.ErrorIs(t, err, ErrMissingSecret)
	}

	_, err := NewCodec("k", "short", "s")
	assert.Error(t, err)
}

func TestDecryptMalformed(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = c.Decrypt("v2:" + base64.StdEncoding.EncodeToString([]byte("tiny")))
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	other, err := NewCodec("another passphrase", "0123456789abcdef", "pepper")
	require.NoError(t, err)
	enc, err := other.EncryptStatic("AKIAEXAMPLE")
	require.NoError(t, err)
	// A wrong key almost always yields invalid padding.
	if _, err := c.Decrypt(enc); err != nil {
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	}
}

func TestPadding(t *testing.T) {
	assert.Len(t, pad(nil, 16), 16)
	assert.Len(t, pad(make([]byte, 16), 16), 32)
	assert.Len(t, pad(make([]byte, 15), 16), 16)

	_, err := unpad([]byte{1, 2, 3, 0}, 16)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
	_, err = unpad([]byte{2, 2, 3, 2}, 16)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}
