package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	"github.com/causeway-service/causeway_service/internal/domain/services/bridge"
	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/metrics"
	"github.com/causeway-service/causeway_service/pkg/webhook"
)

// Relay callback headers. The signature is HMAC-SHA256 over the raw
// body, hex-encoded; the timestamp is unix seconds and bounds how old
// a captured request may be replayed; the event id feeds the
// short-lived delivery dedup cache.
const (
	HeaderRelaySignature = "X-Relay-Signature"
	HeaderRelayTimestamp = "X-Relay-Timestamp"
	HeaderRelayEventID   = "X-Relay-Event-Id"
)

// maxRelayPayload bounds relay callback bodies.
const maxRelayPayload = 1 << 20

// relayDeliveryKeyPrefix namespaces dedup keys for relay delivery ids.
const relayDeliveryKeyPrefix = "relay:delivery:"

// ReplayCache remembers recently seen webhook delivery ids. SetNX
// semantics: true means first sighting. Del releases an id so the
// relay's retry of a failed delivery is processed again.
type ReplayCache interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// RelayWebhookHandlers receives the relay's callbacks: observation
// notices carrying sequence numbers, and mint confirmations.
// Verification fails closed: without a configured secret every
// callback is rejected unless the development-only skip is set. The
// delivery-id cache only suppresses redelivered HTTP requests; the
// durable replay guards are the database constraints underneath.
type RelayWebhookHandlers struct {
	bridge           *bridge.Service
	webhookValidator *webhook.WebhookValidator
	validator        *validator.Validate
	cache            ReplayCache
	secret           string
	skipVerify       bool
	cacheTTL         time.Duration
	logger           *logger.Logger
}

// NewRelayWebhookHandlers creates a new relay webhook handlers
// instance. cache may be nil, which disables delivery dedup.
func NewRelayWebhookHandlers(
	bridgeSvc *bridge.Service,
	cache ReplayCache,
	secret string,
	skipVerify bool,
	timestampSkew time.Duration,
	logger *logger.Logger,
) *RelayWebhookHandlers {
	webhookValidator := webhook.NewWebhookValidator(webhook.WebhookSecurityConfig{
		Secret:           secret,
		MaxTimestampAge:  int64(timestampSkew / time.Second),
		RequireSignature: true,
		MaxPayloadSize:   maxRelayPayload,
	})
	return &RelayWebhookHandlers{
		bridge:           bridgeSvc,
		webhookValidator: webhookValidator,
		validator:        validator.New(),
		cache:            cache,
		secret:           secret,
		skipVerify:       skipVerify,
		cacheTTL:         2 * timestampSkew,
		logger:           logger,
	}
}

// HandleRelayEvent records a relay observation for a lock.
// POST /api/v1/relay/events
func (h *RelayWebhookHandlers) HandleRelayEvent(c *gin.Context) {
	rawBody, eventID, ok := h.authenticate(c)
	if !ok {
		return
	}

	var req entities.RelayNoticeRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		respondBadRequest(c, MsgInvalidRequest)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.logger.Warn("Relay notice validation failed",
			"error", err)
		respondBadRequest(c, MsgInvalidRequest)
		return
	}

	event := &entities.RelayEvent{
		LockID:         req.LockID,
		SequenceNumber: *req.SequenceNumber,
		Kind:           req.Kind,
		Payload:        req.Payload,
	}
	if err := h.bridge.OnRelayEvent(c.Request.Context(), event); err != nil {
		if statusForError(err) >= http.StatusInternalServerError {
			h.releaseDelivery(c.Request.Context(), eventID)
		}
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, gin.H{
		"status":          "processed",
		"lock_id":         event.LockID,
		"sequence_number": event.SequenceNumber,
	})
}

// HandleMintConfirmed marks a relayed lock as minted on the
// destination chain.
// POST /api/v1/relay/mints/:lock_id/confirm
func (h *RelayWebhookHandlers) HandleMintConfirmed(c *gin.Context) {
	_, eventID, ok := h.authenticate(c)
	if !ok {
		return
	}

	lockID, err := parseUUID(c.Param("lock_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid lock id", nil)
		return
	}

	if err := h.bridge.OnMintConfirmed(c.Request.Context(), lockID); err != nil {
		if statusForError(err) >= http.StatusInternalServerError {
			h.releaseDelivery(c.Request.Context(), eventID)
		}
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, gin.H{
		"status":  "confirmed",
		"lock_id": lockID,
	})
}

// authenticate reads the raw body and verifies the callback. It writes
// the error response itself and returns ok=false when the request must
// not be processed. A duplicate delivery id answers 200 so the relay
// stops retrying, but reports the body as not-to-be-processed.
func (h *RelayWebhookHandlers) authenticate(c *gin.Context) (rawBody []byte, eventID string, ok bool) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRelayPayload+1))
	if err != nil {
		respondBadRequest(c, "failed to read request body")
		return nil, "", false
	}
	if len(rawBody) > maxRelayPayload {
		respondError(c, http.StatusRequestEntityTooLarge, ErrCodeInvalidRequest,
			"payload too large", nil)
		return nil, "", false
	}

	eventID = c.GetHeader(HeaderRelayEventID)

	if h.secret == "" {
		if !h.skipVerify {
			h.logger.Error("Relay webhook rejected: no secret configured")
			respondError(c, http.StatusUnauthorized, ErrCodeWebhookNotConfigured,
				"webhook signature verification is not configured", nil)
			return nil, "", false
		}
		// Development-only path; nothing to verify.
		return rawBody, eventID, true
	}

	signature := c.GetHeader(HeaderRelaySignature)
	timestamp, _ := strconv.ParseInt(c.GetHeader(HeaderRelayTimestamp), 10, 64)

	if err := h.webhookValidator.ValidateRequest(rawBody, signature, timestamp, eventID); err != nil {
		h.logger.Warn("Relay webhook rejected",
			"error", err,
			"event_id", eventID)
		respondError(c, http.StatusUnauthorized, ErrCodeInvalidSignature,
			"webhook signature verification failed", nil)
		return nil, "", false
	}

	if eventID != "" && h.cache != nil {
		first, err := h.cache.SetNX(c.Request.Context(), relayDeliveryKeyPrefix+eventID, 1, h.cacheTTL)
		if err != nil {
			// Cache outage must not block relay traffic; the database
			// guards still hold.
			h.logger.Warn("Relay delivery dedup unavailable",
				"error", err,
				"event_id", eventID)
		} else if !first {
			metrics.RecordReplayRejection("webhook_delivery")
			h.logger.Info("Relay delivery replayed",
				"event_id", eventID)
			respondSuccess(c, gin.H{"status": "duplicate", "event_id": eventID})
			return nil, "", false
		}
	}

	return rawBody, eventID, true
}

// releaseDelivery drops a delivery dedup key after a processing
// failure the relay should retry.
func (h *RelayWebhookHandlers) releaseDelivery(ctx context.Context, eventID string) {
	if eventID == "" || h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, relayDeliveryKeyPrefix+eventID); err != nil {
		h.logger.Warn("Failed to release relay delivery id",
			"error", err,
			"event_id", eventID)
	}
}
