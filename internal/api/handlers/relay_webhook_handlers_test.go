package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/webhook"
)

// fakeReplayCache is an in-memory stand-in for the Redis delivery
// dedup cache.
type fakeReplayCache struct {
	seen map[string]bool
}

func newFakeReplayCache() *fakeReplayCache {
	return &fakeReplayCache{seen: make(map[string]bool)}
}

func (f *fakeReplayCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeReplayCache) Del(ctx context.Context, key string) error {
	delete(f.seen, key)
	return nil
}

func newRelayTestHandlers(secret string, skipVerify bool, cache ReplayCache) *RelayWebhookHandlers {
	zapLogger, _ := zap.NewDevelopment()
	return NewRelayWebhookHandlers(nil, cache, secret, skipVerify, 5*time.Minute, logger.NewLogger(zapLogger))
}

func signedRelayRequest(body []byte, secret, eventID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRelaySignature, webhook.Sign(body, secret))
	req.Header.Set(HeaderRelayTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	if eventID != "" {
		req.Header.Set(HeaderRelayEventID, eventID)
	}
	return req
}

func TestRelayWebhookVerification_FailsClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name                string
		webhookSecret       string
		skipSignatureVerify bool
		expectedStatus      int
		expectedError       string
	}{
		{
			name:                "No secret, skip disabled - should reject",
			webhookSecret:       "",
			skipSignatureVerify: false,
			expectedStatus:      http.StatusUnauthorized,
			expectedError:       "WEBHOOK_NOT_CONFIGURED",
		},
		{
			name:                "No secret, skip enabled (dev mode) - should allow",
			webhookSecret:       "",
			skipSignatureVerify: true,
			expectedStatus:      http.StatusBadRequest, // Will fail on validation, not auth
			expectedError:       "",
		},
		{
			name:                "With secret, invalid signature - should reject",
			webhookSecret:       "test-secret",
			skipSignatureVerify: false,
			expectedStatus:      http.StatusUnauthorized,
			expectedError:       "INVALID_SIGNATURE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRelayTestHandlers(tt.webhookSecret, tt.skipSignatureVerify, nil)

			router := gin.New()
			router.POST("/webhook", h.HandleRelayEvent)

			body := []byte(`{}`)
			req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(HeaderRelaySignature, "invalid-signature")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.Contains(t, w.Body.String(), tt.expectedError)
			}
		})
	}
}

func TestRelayWebhookVerification_ValidSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)

	secret := "test-relay-secret"
	// Missing sequence_number, so the request dies on validation after
	// the signature is accepted.
	body := []byte(fmt.Sprintf(`{"lock_id": %q}`, uuid.New()))

	h := newRelayTestHandlers(secret, false, nil)

	router := gin.New()
	router.POST("/webhook", h.HandleRelayEvent)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRelayRequest(body, secret, ""))

	// Should pass signature verification and fail on payload validation
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestRelayWebhookVerification_StaleTimestamp(t *testing.T) {
	gin.SetMode(gin.TestMode)

	secret := "test-relay-secret"
	body := []byte(fmt.Sprintf(`{"lock_id": %q}`, uuid.New()))

	h := newRelayTestHandlers(secret, false, nil)

	router := gin.New()
	router.POST("/webhook", h.HandleRelayEvent)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRelaySignature, webhook.Sign(body, secret))
	req.Header.Set(HeaderRelayTimestamp, strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_SIGNATURE")
}

func TestRelayWebhookDuplicateDelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	secret := "test-relay-secret"
	body := []byte(fmt.Sprintf(`{"lock_id": %q}`, uuid.New()))
	cache := newFakeReplayCache()

	h := newRelayTestHandlers(secret, false, cache)

	router := gin.New()
	router.POST("/webhook", h.HandleRelayEvent)

	// First delivery reaches payload validation.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRelayRequest(body, secret, "evt_1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Redelivery of the same event id is short-circuited.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, signedRelayRequest(body, secret, "evt_1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")

	// A fresh event id is processed again.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, signedRelayRequest(body, secret, "evt_2"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelayWebhookPayloadTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := newRelayTestHandlers("test-relay-secret", false, nil)

	router := gin.New()
	router.POST("/webhook", h.HandleRelayEvent)

	body := bytes.Repeat([]byte("a"), maxRelayPayload+1)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMintConfirmedRejectsBadLockID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := newRelayTestHandlers("", true, nil)

	router := gin.New()
	router.POST("/mints/:lock_id/confirm", h.HandleMintConfirmed)

	req := httptest.NewRequest(http.MethodPost, "/mints/not-a-uuid/confirm", bytes.NewReader([]byte(`{}`)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_ID")
}
