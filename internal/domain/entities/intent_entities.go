package entities

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// BasisPointsDenominator is the fixed-point denominator for rates. A
// rate of 500 bps is 5%.
const BasisPointsDenominator int64 = 10_000

// MaxBasisPoints caps rates at 100%.
const MaxBasisPoints int64 = 10_000

// MaxStakeAmount bounds stake amounts so amount * rate cannot overflow
// int64 during reward computation.
const MaxStakeAmount int64 = math.MaxInt64 / BasisPointsDenominator

// MaxAssetNameLength bounds metadata asset names, counted in runes.
const MaxAssetNameLength = 32

// DefaultMetadataMarker is the substring metadata text must contain to
// be considered well formed. The match is case-sensitive.
const DefaultMetadataMarker = "Valid Metadata"

// === Stake ===

// StakeRequest asks for a reward computation over a staked amount.
// Amounts are integer base units; rates are basis points. The numeric
// fields carry no binding rules so range failures surface as taxonomy
// errors from the validator, not generic binding errors.
type StakeRequest struct {
	StakerID       string `json:"staker_id" binding:"omitempty,max=128"`
	Amount         int64  `json:"amount"`
	RewardRateBps  int64  `json:"reward_rate_bps"`
	RoyaltyRateBps int64  `json:"royalty_rate_bps"`
}

// RewardBreakdown is the validated result of a stake computation. All
// figures are integer base units; division truncates toward zero.
// NetDisplay is the rendered form of NetReward for API consumers.
type RewardBreakdown struct {
	Amount      int64  `json:"amount"`
	GrossReward int64  `json:"gross_reward"`
	Royalty     int64  `json:"royalty"`
	NetReward   int64  `json:"net_reward"`
	NetDisplay  string `json:"net_reward_display"`
}

// NetRewardDisplay renders the net reward at the configured scale.
func (r *RewardBreakdown) NetRewardDisplay() string {
	return decimal.New(r.NetReward, -AmountScale).StringFixed(AmountScale)
}

// StakeRecord is the immutable record of an accepted stake. It is
// assembled once from a validated request and never updated.
type StakeRecord struct {
	StakerID       string          `json:"staker_id,omitempty"`
	Amount         int64           `json:"amount"`
	RewardRateBps  int64           `json:"reward_rate_bps"`
	RoyaltyRateBps int64           `json:"royalty_rate_bps"`
	Reward         RewardBreakdown `json:"reward"`
	CreatedAt      time.Time       `json:"created_at"`
}

// === Auction ===

// Bid is a single auction bid. Order of appearance in the submitted
// slice is the submission order used for tie-breaking. Amount carries
// no binding rule: positivity is the validator's call, so zero and
// negative amounts reach it and get the proper taxonomy error.
type Bid struct {
	Bidder string `json:"bidder" binding:"required,min=1,max=128"`
	Amount int64  `json:"amount"`
}

// AuctionRequest submits a bid set with the total the bids must sum to.
// ExpectedSum is a pointer so an explicit zero survives binding.
type AuctionRequest struct {
	Bids        []Bid  `json:"bids" binding:"required,min=1,dive"`
	ExpectedSum *int64 `json:"expected_sum" binding:"required"`
}

// AuctionResult reports the validated outcome and the winning bid.
type AuctionResult struct {
	Winner   *Bid  `json:"winner,omitempty"`
	Total    int64 `json:"total"`
	BidCount int   `json:"bid_count"`
}

// === Metadata ===

// Metadata is the intent payload subject to format validation.
type Metadata struct {
	Text      string `json:"text"`
	AssetName string `json:"asset_name"`
}

// SignedMetadata pairs metadata with an ed25519 signature over the
// canonical byte encoding of Text.
type SignedMetadata struct {
	Metadata
	Signature []byte `json:"-"`
	PublicKey []byte `json:"-"`
}

// MetadataRequest is the API form of a signed metadata submission.
// Signature and PublicKey are hex-encoded.
type MetadataRequest struct {
	Text      string `json:"text" binding:"required"`
	AssetName string `json:"asset_name" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	PublicKey string `json:"public_key" binding:"required"`
}

// MetadataAttributes is the typed form of the bracketed attribute list
// a metadata text may embed, e.g. "[minter, alice]". Parsing is all or
// nothing: a list with the wrong arity or an empty field is a format
// error, never a partially filled record.
type MetadataAttributes struct {
	Role     string `json:"role"`
	Username string `json:"username"`
}

// MetadataResponse confirms an authenticated metadata submission.
type MetadataResponse struct {
	AssetName     string              `json:"asset_name"`
	CanonicalHash string              `json:"canonical_hash"`
	Authenticated bool                `json:"authenticated"`
	Attributes    *MetadataAttributes `json:"attributes,omitempty"`
}
