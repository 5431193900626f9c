package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalBytes(t *testing.T) {
	t.Run("plain ascii is unchanged", func(t *testing.T) {
		assert.Equal(t, []byte("Valid Metadata"), CanonicalBytes("Valid Metadata"))
	})

	t.Run("composed and decomposed forms canonicalize the same", func(t *testing.T) {
		composed := "café"        // é as a single code point
		decomposed := "café"     // e + combining acute
		require.NotEqual(t, composed, decomposed)
		assert.Equal(t, CanonicalBytes(composed), CanonicalBytes(decomposed))
		assert.Equal(t, CanonicalDigest(composed), CanonicalDigest(decomposed))
	})
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("payload"))
	b := Digest([]byte("payload"))
	c := Digest([]byte("other"))

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, DigestHex([]byte("payload")), DigestHex([]byte("payload")))
}

func TestVerifySignature(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	digest := CanonicalDigest("Valid Metadata payload")
	sig := Sign(priv, digest)

	t.Run("valid signature verifies", func(t *testing.T) {
		assert.True(t, VerifySignature(pub, digest, sig))
	})

	t.Run("wrong digest fails", func(t *testing.T) {
		assert.False(t, VerifySignature(pub, CanonicalDigest("tampered"), sig))
	})

	t.Run("wrong key fails", func(t *testing.T) {
		otherPub, _, err := GenerateKeyPair()
		require.NoError(t, err)
		assert.False(t, VerifySignature(otherPub, digest, sig))
	})

	t.Run("malformed key and signature sizes fail closed", func(t *testing.T) {
		assert.False(t, VerifySignature(pub[:16], digest, sig))
		assert.False(t, VerifySignature(pub, digest, sig[:10]))
		assert.False(t, VerifySignature(nil, digest, nil))
	})
}

func TestDecodeHex(t *testing.T) {
	want := []byte{0xde, 0xad, 0xbe, 0xef}

	got, err := DecodeHex("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = DecodeHex("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = DecodeHex("not-hex")
	assert.Error(t, err)
}
