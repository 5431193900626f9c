package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// CanonicalBytes returns the canonical byte encoding of a text payload:
// NFC-normalized UTF-8. Signatures are always produced and verified
// over this form so visually identical strings with different code
// point sequences hash the same.
func CanonicalBytes(text string) []byte {
	return []byte(norm.NFC.String(text))
}

// Digest computes the BLAKE2b-256 digest of the given bytes.
func Digest(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// DigestHex computes the BLAKE2b-256 digest and returns it hex-encoded.
func DigestHex(data []byte) string {
	return hex.EncodeToString(Digest(data))
}

// CanonicalDigest is the signing payload for a text: the BLAKE2b-256
// digest of its canonical bytes.
func CanonicalDigest(text string) []byte {
	return Digest(CanonicalBytes(text))
}

// VerifySignature checks an ed25519 signature over the given message
// digest. Malformed keys or signatures report false rather than
// panicking inside the ed25519 package.
func VerifySignature(publicKey, digest, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), digest, signature)
}

// Sign produces an ed25519 signature over the digest. Used by tests and
// tooling; the service itself only verifies.
func Sign(privateKey ed25519.PrivateKey, digest []byte) []byte {
	return ed25519.Sign(privateKey, digest)
}

// GenerateKeyPair creates a fresh ed25519 key pair.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return pub, priv, nil
}

// DecodeHex decodes a hex string, tolerating an optional 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex: %w", err)
	}
	return data, nil
}
