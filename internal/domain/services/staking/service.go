// Package staking validates stake intents and computes reward
// breakdowns with fixed-point basis-point arithmetic. No floats touch
// the money path; division truncates toward zero.
package staking

import (
	"time"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/internal/domain/rules"
	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/metrics"
)

// Service validates stake requests and computes rewards
type Service struct {
	logger *logger.Logger
}

// NewService creates a new staking service
func NewService(logger *logger.Logger) *Service {
	return &Service{logger: logger}
}

// ComputeReward validates the request and computes the reward
// breakdown. Checks run in a fixed order and the first failure wins:
// amount positivity, amount bound, reward rate range, royalty rate
// range.
func (s *Service) ComputeReward(req *entities.StakeRequest) (*entities.RewardBreakdown, error) {
	err := rules.Sequence(
		func() error { return rules.Check(req.Amount > 0, domainerrors.ErrInvalidStake) },
		func() error { return rules.Check(req.Amount <= entities.MaxStakeAmount, domainerrors.ErrInvalidStake) },
		func() error { return checkRate(req.RewardRateBps) },
		func() error { return checkRate(req.RoyaltyRateBps) },
	)

	breakdown, err := rules.Map(req, err, func(r *entities.StakeRequest) *entities.RewardBreakdown {
		gross := r.Amount * r.RewardRateBps / entities.BasisPointsDenominator
		royalty := gross * r.RoyaltyRateBps / entities.BasisPointsDenominator
		b := &entities.RewardBreakdown{
			Amount:      r.Amount,
			GrossReward: gross,
			Royalty:     royalty,
			NetReward:   gross - royalty,
		}
		b.NetDisplay = b.NetRewardDisplay()
		return b
	})
	if err != nil {
		s.logger.Warn("Stake validation failed",
			"error", err,
			"amount", req.Amount,
			"reward_rate_bps", req.RewardRateBps,
			"royalty_rate_bps", req.RoyaltyRateBps)
		metrics.RecordValidationFailure("stake", domainerrors.GetErrorCode(err))
		metrics.RecordIntent("stake", "rejected")
		return nil, err
	}

	metrics.RecordIntent("stake", "accepted")
	return breakdown, nil
}

// SubmitStake validates the request and returns the immutable record
// of the accepted stake.
func (s *Service) SubmitStake(req *entities.StakeRequest) (*entities.StakeRecord, error) {
	breakdown, err := s.ComputeReward(req)
	if err != nil {
		return nil, err
	}
	return &entities.StakeRecord{
		StakerID:       req.StakerID,
		Amount:         req.Amount,
		RewardRateBps:  req.RewardRateBps,
		RoyaltyRateBps: req.RoyaltyRateBps,
		Reward:         *breakdown,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// checkRate validates a basis-point rate is within 0..10000 inclusive.
func checkRate(bps int64) error {
	return rules.Check(bps >= 0 && bps <= entities.MaxBasisPoints, domainerrors.ErrInvalidRate)
}
