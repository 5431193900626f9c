// Package webhook authenticates inbound relay callbacks: an
// HMAC-SHA256 signature over the raw payload plus a bounded timestamp
// to keep captured requests from being replayed later.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// VerifySignature checks a hex-encoded HMAC-SHA256 signature over the
// payload. Comparison is constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign produces the hex-encoded HMAC-SHA256 signature for a payload.
// Used by tests and by tooling that emits webhooks.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookSecurityConfig configures request validation
type WebhookSecurityConfig struct {
	Secret           string
	MaxTimestampAge  int64 // seconds; 0 disables the timestamp check
	RequireSignature bool
	MaxPayloadSize   int64 // bytes; 0 disables the size check
}

// WebhookValidator validates inbound webhook requests
type WebhookValidator struct {
	config WebhookSecurityConfig
}

// NewWebhookValidator creates a validator with the given config
func NewWebhookValidator(config WebhookSecurityConfig) *WebhookValidator {
	return &WebhookValidator{config: config}
}

// ValidateRequest checks payload size, timestamp freshness, and the
// signature, in that order. eventID is reserved for caller-side replay
// bookkeeping and may be empty.
func (v *WebhookValidator) ValidateRequest(payload []byte, signature string, timestamp int64, eventID string) error {
	if v.config.MaxPayloadSize > 0 && int64(len(payload)) > v.config.MaxPayloadSize {
		return fmt.Errorf("payload exceeds %d bytes", v.config.MaxPayloadSize)
	}

	if v.config.MaxTimestampAge > 0 {
		age := time.Now().Unix() - timestamp
		if age < 0 {
			age = -age
		}
		if age > v.config.MaxTimestampAge {
			return fmt.Errorf("timestamp outside allowed window of %d seconds", v.config.MaxTimestampAge)
		}
	}

	if signature == "" {
		if v.config.RequireSignature {
			return fmt.Errorf("signature required")
		}
		return nil
	}
	if !VerifySignature(payload, signature, v.config.Secret) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
