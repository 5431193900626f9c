// Package idempotency handles the Idempotency-Key request header.
// Storage lives with the resource being created (the locks table keeps
// the key and a request fingerprint), so this package only extracts
// and validates keys.
package idempotency

import (
	"fmt"
	"unicode"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey is the HTTP header carrying the client's
	// idempotency key.
	HeaderIdempotencyKey = "Idempotency-Key"

	// MaxKeyLength bounds accepted keys. Clients typically send UUIDs;
	// the bound just keeps arbitrary blobs out of the index.
	MaxKeyLength = 128
)

// ValidateKey checks an idempotency key's shape. An empty key is
// valid: the header is optional and absence simply disables replay
// protection for that request.
func ValidateKey(key string) error {
	if key == "" {
		return nil
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("idempotency key exceeds %d characters", MaxKeyLength)
	}
	for _, r := range key {
		if r > unicode.MaxASCII || unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("idempotency key contains invalid characters")
		}
	}
	return nil
}

// FromRequest extracts and validates the idempotency key from the
// request headers.
func FromRequest(c *gin.Context) (string, error) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}
