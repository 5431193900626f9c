package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/internal/domain/services/bridge"
	"github.com/causeway-service/causeway_service/pkg/crypto"
	"github.com/causeway-service/causeway_service/pkg/idempotency"
	"github.com/causeway-service/causeway_service/pkg/logger"
)

// BridgeHandlers serves the client side of the lock lifecycle: opening
// locks, reading their state, and presenting unlock proofs. Relay
// callbacks live in RelayWebhookHandlers; the timeout sweep has no API.
type BridgeHandlers struct {
	bridge *bridge.Service
	logger *logger.Logger
}

// NewBridgeHandlers creates a new bridge handlers instance
func NewBridgeHandlers(bridgeSvc *bridge.Service, logger *logger.Logger) *BridgeHandlers {
	return &BridgeHandlers{bridge: bridgeSvc, logger: logger}
}

// CreateLock opens a new lock. An Idempotency-Key header makes the
// call replay-safe: replaying the same request under the same key
// returns the original lock, a different request under the same key
// conflicts. Responds 201 in both the fresh and the replayed case so
// retrying clients cannot tell a replay from their first attempt.
// POST /api/v1/bridge/locks
func (h *BridgeHandlers) CreateLock(c *gin.Context) {
	var req entities.CreateLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, MsgInvalidRequest)
		return
	}

	key, err := idempotency.FromRequest(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	lock, err := h.bridge.CreateLock(c.Request.Context(), &req, key)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondCreated(c, lock.ToResponse())
}

// GetLock returns the current state of a lock.
// GET /api/v1/bridge/locks/:lock_id
func (h *BridgeHandlers) GetLock(c *gin.Context) {
	lockID, err := parseUUID(c.Param("lock_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid lock id", nil)
		return
	}

	lock, err := h.bridge.GetLock(c.Request.Context(), lockID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, lock.ToResponse())
}

// ListRelayEvents returns the append-only relay log for a lock in
// sequence order.
// GET /api/v1/bridge/locks/:lock_id/events
func (h *BridgeHandlers) ListRelayEvents(c *gin.Context) {
	lockID, err := parseUUID(c.Param("lock_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid lock id", nil)
		return
	}

	events, err := h.bridge.ListRelayEvents(c.Request.Context(), lockID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, gin.H{
		"lock_id": lockID,
		"events":  events,
		"count":   len(events),
	})
}

// Unlock presents the relay signer's proof for a minted lock. The
// proof is hex-encoded in the body; malformed hex fails exactly like a
// proof that does not verify.
// POST /api/v1/bridge/locks/:lock_id/unlock
func (h *BridgeHandlers) Unlock(c *gin.Context) {
	lockID, err := parseUUID(c.Param("lock_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "invalid lock id", nil)
		return
	}

	var req entities.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, MsgInvalidRequest)
		return
	}

	proof, err := crypto.DecodeHex(req.Proof)
	if err != nil {
		respondDomainError(c, domainerrors.ErrProofInvalid)
		return
	}

	lock, err := h.bridge.Unlock(c.Request.Context(), lockID, proof)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, &entities.UnlockResponse{
		LockID:      lock.ID,
		Status:      lock.Status,
		CompletedAt: lock.CompletedAt,
	})
}

// StatusCounts reports lock counts per status, an operator read model
// for dashboards and alerting.
// GET /api/v1/bridge/status
func (h *BridgeHandlers) StatusCounts(c *gin.Context) {
	counts, err := h.bridge.StatusCounts(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, gin.H{"counts": counts})
}
