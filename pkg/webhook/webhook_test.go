package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"lock_id":"abc","sequence_number":0}`)
	secret := "test_webhook_secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			payload:   payload,
			signature: validSig,
			secret:    secret,
			want:      true,
		},
		{
			name:      "invalid signature",
			payload:   payload,
			signature: "invalid_signature",
			secret:    secret,
			want:      false,
		},
		{
			name:      "wrong secret",
			payload:   payload,
			signature: validSig,
			secret:    "wrong_secret",
			want:      false,
		},
		{
			name:      "modified payload",
			payload:   []byte(`{"lock_id":"abc","sequence_number":1}`),
			signature: validSig,
			secret:    secret,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := VerifySignature(tt.payload, tt.signature, tt.secret)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestSignRoundTrip(t *testing.T) {
	payload := []byte(`{"lock_id":"abc"}`)
	sig := Sign(payload, "secret")
	assert.True(t, VerifySignature(payload, sig, "secret"))
}

func TestValidateRequest(t *testing.T) {
	payload := []byte(`{"lock_id":"abc"}`)
	secret := "secret"
	v := NewWebhookValidator(WebhookSecurityConfig{
		Secret:           secret,
		MaxTimestampAge:  300,
		RequireSignature: true,
		MaxPayloadSize:   1024,
	})

	now := time.Now().Unix()

	t.Run("valid request", func(t *testing.T) {
		err := v.ValidateRequest(payload, Sign(payload, secret), now, "")
		assert.NoError(t, err)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		err := v.ValidateRequest(payload, Sign(payload, secret), now-600, "")
		assert.Error(t, err)
	})

	t.Run("future timestamp outside window", func(t *testing.T) {
		err := v.ValidateRequest(payload, Sign(payload, secret), now+600, "")
		assert.Error(t, err)
	})

	t.Run("missing signature", func(t *testing.T) {
		err := v.ValidateRequest(payload, "", now, "")
		assert.Error(t, err)
	})

	t.Run("oversized payload", func(t *testing.T) {
		big := make([]byte, 2048)
		err := v.ValidateRequest(big, Sign(big, secret), now, "")
		assert.Error(t, err)
	})

	t.Run("signature optional when not required", func(t *testing.T) {
		lax := NewWebhookValidator(WebhookSecurityConfig{Secret: secret})
		assert.NoError(t, lax.ValidateRequest(payload, "", now, ""))
	})
}
