package auction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/pkg/logger"
)

func bids(amounts ...int64) []entities.Bid {
	out := make([]entities.Bid, len(amounts))
	for i, a := range amounts {
		out[i] = entities.Bid{Bidder: string(rune('a' + i)), Amount: a}
	}
	return out
}

func TestValidateAndSelect(t *testing.T) {
	svc := NewService(logger.NewNop())

	t.Run("valid set selects highest bid", func(t *testing.T) {
		got, err := svc.ValidateAndSelect(bids(100, 200, 300), 600)
		require.NoError(t, err)
		require.NotNil(t, got.Winner)
		assert.Equal(t, int64(300), got.Winner.Amount)
		assert.Equal(t, 3, got.BidCount)
		assert.Equal(t, int64(600), got.Total)
	})

	t.Run("negative bid rejected", func(t *testing.T) {
		got, err := svc.ValidateAndSelect(bids(100, -5), 95)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, domainerrors.ErrNonPositiveBid)
	})

	t.Run("zero bid rejected", func(t *testing.T) {
		_, err := svc.ValidateAndSelect(bids(100, 0), 100)
		assert.ErrorIs(t, err, domainerrors.ErrNonPositiveBid)
	})

	t.Run("positivity checked before sum", func(t *testing.T) {
		// The sum is also wrong; the positivity failure must win.
		_, err := svc.ValidateAndSelect(bids(-5, 100), 999)
		assert.ErrorIs(t, err, domainerrors.ErrNonPositiveBid)
	})

	t.Run("sum mismatch rejected", func(t *testing.T) {
		_, err := svc.ValidateAndSelect(bids(100, 200, 300), 601)
		assert.ErrorIs(t, err, domainerrors.ErrBidSumMismatch)
	})

	t.Run("empty set valid only with zero expected sum", func(t *testing.T) {
		got, err := svc.ValidateAndSelect(nil, 0)
		require.NoError(t, err)
		assert.Nil(t, got.Winner)
		assert.Equal(t, 0, got.BidCount)

		_, err = svc.ValidateAndSelect(nil, 1)
		assert.ErrorIs(t, err, domainerrors.ErrBidSumMismatch)
	})

	t.Run("tie goes to earliest submission", func(t *testing.T) {
		set := []entities.Bid{
			{Bidder: "zoe", Amount: 300},
			{Bidder: "amy", Amount: 300},
			{Bidder: "bob", Amount: 100},
		}
		got, err := svc.ValidateAndSelect(set, 700)
		require.NoError(t, err)
		require.NotNil(t, got.Winner)
		// First of the tied bids wins regardless of bidder ordering.
		assert.Equal(t, "zoe", got.Winner.Bidder)
	})

	t.Run("single bid wins", func(t *testing.T) {
		got, err := svc.ValidateAndSelect(bids(42), 42)
		require.NoError(t, err)
		require.NotNil(t, got.Winner)
		assert.Equal(t, int64(42), got.Winner.Amount)
	})

	t.Run("overflowing sum cannot match", func(t *testing.T) {
		set := []entities.Bid{
			{Bidder: "a", Amount: math.MaxInt64},
			{Bidder: "b", Amount: math.MaxInt64},
			{Bidder: "c", Amount: 2},
		}
		// Unchecked int64 addition of these would wrap to 0.
		_, err := svc.ValidateAndSelect(set, 0)
		assert.ErrorIs(t, err, domainerrors.ErrBidSumMismatch)
	})
}
