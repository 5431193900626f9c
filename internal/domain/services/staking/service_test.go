package staking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/pkg/logger"
)

func newTestService() *Service {
	return NewService(logger.NewNop())
}

func TestComputeReward(t *testing.T) {
	svc := newTestService()

	t.Run("known breakdown", func(t *testing.T) {
		// 1,000,000 staked at 5% reward with a 10% royalty on the reward.
		got, err := svc.ComputeReward(&entities.StakeRequest{
			Amount:         1_000_000,
			RewardRateBps:  500,
			RoyaltyRateBps: 1_000,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(50_000), got.GrossReward)
		assert.Equal(t, int64(5_000), got.Royalty)
		assert.Equal(t, int64(45_000), got.NetReward)
		assert.Equal(t, "0.045000", got.NetDisplay)
	})

	t.Run("truncating division", func(t *testing.T) {
		got, err := svc.ComputeReward(&entities.StakeRequest{
			Amount:         999,
			RewardRateBps:  1, // 0.01% of 999 = 0.0999 -> 0
			RoyaltyRateBps: 0,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.GrossReward)
		assert.Equal(t, int64(0), got.NetReward)
	})

	t.Run("zero rates yield zero reward", func(t *testing.T) {
		got, err := svc.ComputeReward(&entities.StakeRequest{Amount: 500})
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.GrossReward)
		assert.Equal(t, int64(0), got.Royalty)
		assert.Equal(t, int64(0), got.NetReward)
	})

	t.Run("full royalty consumes the reward", func(t *testing.T) {
		got, err := svc.ComputeReward(&entities.StakeRequest{
			Amount:         1_000_000,
			RewardRateBps:  500,
			RoyaltyRateBps: 10_000,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(50_000), got.GrossReward)
		assert.Equal(t, int64(50_000), got.Royalty)
		assert.Equal(t, int64(0), got.NetReward)
	})

	tests := []struct {
		name    string
		req     entities.StakeRequest
		wantErr error
	}{
		{
			name:    "zero amount",
			req:     entities.StakeRequest{Amount: 0, RewardRateBps: 500},
			wantErr: domainerrors.ErrInvalidStake,
		},
		{
			name:    "negative amount",
			req:     entities.StakeRequest{Amount: -1, RewardRateBps: 500},
			wantErr: domainerrors.ErrInvalidStake,
		},
		{
			name:    "amount above overflow bound",
			req:     entities.StakeRequest{Amount: entities.MaxStakeAmount + 1, RewardRateBps: 500},
			wantErr: domainerrors.ErrInvalidStake,
		},
		{
			name:    "negative reward rate",
			req:     entities.StakeRequest{Amount: 100, RewardRateBps: -1},
			wantErr: domainerrors.ErrInvalidRate,
		},
		{
			name:    "reward rate above 100 percent",
			req:     entities.StakeRequest{Amount: 100, RewardRateBps: 10_001},
			wantErr: domainerrors.ErrInvalidRate,
		},
		{
			name:    "royalty rate above 100 percent",
			req:     entities.StakeRequest{Amount: 100, RewardRateBps: 500, RoyaltyRateBps: 10_001},
			wantErr: domainerrors.ErrInvalidRate,
		},
		{
			name:    "invalid amount reported before invalid rate",
			req:     entities.StakeRequest{Amount: -1, RewardRateBps: -1},
			wantErr: domainerrors.ErrInvalidStake,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ComputeReward(&tt.req)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("amount at overflow bound computes without wraparound", func(t *testing.T) {
		got, err := svc.ComputeReward(&entities.StakeRequest{
			Amount:         entities.MaxStakeAmount,
			RewardRateBps:  10_000,
			RoyaltyRateBps: 0,
		})
		require.NoError(t, err)
		assert.Equal(t, entities.MaxStakeAmount, got.GrossReward)
		assert.GreaterOrEqual(t, got.NetReward, int64(0))
	})
}

func TestSubmitStake(t *testing.T) {
	svc := NewService(logger.NewNop())

	t.Run("accepted stake yields an immutable record", func(t *testing.T) {
		got, err := svc.SubmitStake(&entities.StakeRequest{
			StakerID:       "staker-1",
			Amount:         1_000_000,
			RewardRateBps:  500,
			RoyaltyRateBps: 1_000,
		})
		require.NoError(t, err)
		assert.Equal(t, "staker-1", got.StakerID)
		assert.Equal(t, int64(45_000), got.Reward.NetReward)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("rejection yields no record", func(t *testing.T) {
		got, err := svc.SubmitStake(&entities.StakeRequest{Amount: 0, RewardRateBps: 500})
		assert.Nil(t, got)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidStake)
	})
}
