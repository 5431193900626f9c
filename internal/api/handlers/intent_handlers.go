package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/internal/domain/services/auction"
	"github.com/causeway-service/causeway_service/internal/domain/services/metadata"
	"github.com/causeway-service/causeway_service/internal/domain/services/staking"
	"github.com/causeway-service/causeway_service/pkg/crypto"
	"github.com/causeway-service/causeway_service/pkg/logger"
)

// IntentHandlers serves the validation intents: stake reward
// computation, auction bid selection, and signed metadata submission.
// Binding catches only shape problems; every rule of the validation
// taxonomy is the domain services' call so rejections come back with
// their taxonomy code, not a generic binding error.
type IntentHandlers struct {
	staking  *staking.Service
	auction  *auction.Service
	metadata *metadata.Service
	maxBids  int
	logger   *logger.Logger
}

// NewIntentHandlers creates a new intent handlers instance
func NewIntentHandlers(
	stakingSvc *staking.Service,
	auctionSvc *auction.Service,
	metadataSvc *metadata.Service,
	maxBids int,
	logger *logger.Logger,
) *IntentHandlers {
	return &IntentHandlers{
		staking:  stakingSvc,
		auction:  auctionSvc,
		metadata: metadataSvc,
		maxBids:  maxBids,
		logger:   logger,
	}
}

// SubmitStake validates a stake intent and returns the accepted record
// with its reward breakdown.
// POST /api/v1/intents/stake
func (h *IntentHandlers) SubmitStake(c *gin.Context) {
	var req entities.StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, MsgInvalidRequest)
		return
	}

	record, err := h.staking.SubmitStake(&req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondCreated(c, record)
}

// SubmitBids validates an auction bid set and returns the winning bid.
// POST /api/v1/intents/bids
func (h *IntentHandlers) SubmitBids(c *gin.Context) {
	var req entities.AuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, MsgInvalidRequest)
		return
	}
	if h.maxBids > 0 && len(req.Bids) > h.maxBids {
		respondDomainError(c, domainerrors.ValidationError("bids", "too many bids").
			WithDetails(map[string]interface{}{"field": "bids", "max": h.maxBids, "got": len(req.Bids)}))
		return
	}

	result, err := h.auction.ValidateAndSelect(req.Bids, *req.ExpectedSum)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, result)
}

// SubmitMetadata validates a metadata intent's format and
// authenticates its ed25519 signature. Malformed hex in the signature
// or key fails authentication the same way a wrong signature does; it
// never leaks a separate error shape.
// POST /api/v1/intents/metadata
func (h *IntentHandlers) SubmitMetadata(c *gin.Context) {
	var req entities.MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, MsgInvalidRequest)
		return
	}

	signed := &entities.SignedMetadata{
		Metadata: entities.Metadata{
			Text:      req.Text,
			AssetName: req.AssetName,
		},
	}
	var err error
	if signed.Signature, err = crypto.DecodeHex(req.Signature); err != nil {
		respondDomainError(c, domainerrors.ErrSignatureInvalid)
		return
	}
	if signed.PublicKey, err = crypto.DecodeHex(req.PublicKey); err != nil {
		respondDomainError(c, domainerrors.ErrSignatureInvalid)
		return
	}

	resp, err := h.metadata.Authenticate(signed)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, resp)
}
