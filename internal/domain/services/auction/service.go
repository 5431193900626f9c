// Package auction validates bid sets and selects winners. A bid set is
// valid when every amount is positive and the amounts sum exactly to
// the declared total. The winner is the highest amount; ties go to the
// earliest-submitted bid, never to bidder identity.
package auction

import (
	"math"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/internal/domain/rules"
	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/metrics"
)

// Service validates auctions and selects winning bids
type Service struct {
	logger *logger.Logger
}

// NewService creates a new auction service
func NewService(logger *logger.Logger) *Service {
	return &Service{logger: logger}
}

// ValidateAndSelect validates the bid set against the expected sum and
// returns the result with the winning bid. An empty bid set is valid
// exactly when the expected sum is zero, and carries no winner.
func (s *Service) ValidateAndSelect(bids []entities.Bid, expectedSum int64) (*entities.AuctionResult, error) {
	err := rules.Sequence(
		func() error { return checkPositive(bids) },
		func() error { return checkSum(bids, expectedSum) },
	)

	result, err := rules.Map(bids, err, func(bs []entities.Bid) *entities.AuctionResult {
		return &entities.AuctionResult{
			Winner:   selectWinner(bs),
			Total:    expectedSum,
			BidCount: len(bs),
		}
	})
	if err != nil {
		s.logger.Warn("Auction validation failed",
			"error", err,
			"bid_count", len(bids),
			"expected_sum", expectedSum)
		metrics.RecordValidationFailure("auction", domainerrors.GetErrorCode(err))
		metrics.RecordIntent("auction", "rejected")
		return nil, err
	}

	metrics.RecordIntent("auction", "accepted")
	return result, nil
}

// checkPositive rejects the first bid with a non-positive amount.
func checkPositive(bids []entities.Bid) error {
	for i := range bids {
		if err := rules.Check(bids[i].Amount > 0, domainerrors.ErrNonPositiveBid); err != nil {
			return err
		}
	}
	return nil
}

// checkSum verifies the amounts add up to the expected total. The
// running sum is overflow-guarded so wraparound can never masquerade
// as a matching total.
func checkSum(bids []entities.Bid, expectedSum int64) error {
	var sum int64
	for i := range bids {
		if sum > math.MaxInt64-bids[i].Amount {
			return domainerrors.ErrBidSumMismatch
		}
		sum += bids[i].Amount
	}
	return rules.Check(sum == expectedSum, domainerrors.ErrBidSumMismatch)
}

// selectWinner picks the highest bid. Strict greater-than keeps the
// earliest submission on ties. Returns nil for an empty set.
func selectWinner(bids []entities.Bid) *entities.Bid {
	if len(bids) == 0 {
		return nil
	}
	winner := bids[0]
	for _, bid := range bids[1:] {
		if bid.Amount > winner.Amount {
			winner = bid
		}
	}
	return &winner
}
