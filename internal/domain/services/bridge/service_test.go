package bridge

import (
	"context"
	"crypto/ed25519"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/internal/infrastructure/repositories"
	"github.com/causeway-service/causeway_service/pkg/crypto"
	"github.com/causeway-service/causeway_service/pkg/keyedmutex"
	"github.com/causeway-service/causeway_service/pkg/logger"
)

// testHarness wires a service against the database named by
// TEST_DATABASE_URL. Tests that need it skip when the variable is
// unset; the schema is expected to be migrated.
type testHarness struct {
	svc       *Service
	signerPub ed25519.PublicKey
	signerKey ed25519.PrivateKey
}

func newTestHarness(t *testing.T, lockTimeout, mintTimeout time.Duration) *testHarness {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; requires a migrated database")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	log := logger.NewNop()
	zl := log.Zap()
	svc := NewService(
		db,
		repositories.NewLockRepository(db, zl),
		repositories.NewRelayEventRepository(db, zl),
		repositories.NewConsumedProofRepository(db, zl),
		repositories.NewOutboundEventRepository(db, zl),
		keyedmutex.New(16),
		pub,
		lockTimeout,
		mintTimeout,
		log,
	)
	return &testHarness{svc: svc, signerPub: pub, signerKey: priv}
}

func (h *testHarness) proofFor(lockID uuid.UUID) []byte {
	return crypto.Sign(h.signerKey, UnlockDigest(lockID))
}

func lockRequest() *entities.CreateLockRequest {
	return &entities.CreateLockRequest{
		Sender:           "addr-sender",
		Recipient:        "addr-recipient",
		Amount:           500,
		SourceChain:      "source-ledger",
		DestinationChain: "dest-ledger",
	}
}

func TestCreateLockRejectsNonPositiveAmount(t *testing.T) {
	h := newTestHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	for _, amount := range []int64{0, -1} {
		req := lockRequest()
		req.Amount = amount
		_, err := h.svc.CreateLock(ctx, req, "")
		assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	}
}

func TestCreateLockIdempotency(t *testing.T) {
	h := newTestHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	t.Run("same key and same request replays the original lock", func(t *testing.T) {
		key := uuid.NewString()
		first, err := h.svc.CreateLock(ctx, lockRequest(), key)
		require.NoError(t, err)

		second, err := h.svc.CreateLock(ctx, lockRequest(), key)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("same key with a different request conflicts", func(t *testing.T) {
		key := uuid.NewString()
		_, err := h.svc.CreateLock(ctx, lockRequest(), key)
		require.NoError(t, err)

		other := lockRequest()
		other.Amount = 999
		_, err = h.svc.CreateLock(ctx, other, key)
		assert.ErrorIs(t, err, domainerrors.ErrConflict)
	})

	t.Run("no key always opens a fresh lock", func(t *testing.T) {
		first, err := h.svc.CreateLock(ctx, lockRequest(), "")
		require.NoError(t, err)
		second, err := h.svc.CreateLock(ctx, lockRequest(), "")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestDuplicateLockNoticeAdvancesOnce(t *testing.T) {
	h := newTestHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	lock, err := h.svc.CreateLock(ctx, lockRequest(), "")
	require.NoError(t, err)

	notice := func() *entities.RelayEvent {
		return &entities.RelayEvent{
			LockID:         lock.ID,
			SequenceNumber: 0,
			Kind:           entities.RelayEventLockNotice,
		}
	}

	require.NoError(t, h.svc.OnRelayEvent(ctx, notice()))
	// Second identical delivery is a non-error no-op.
	require.NoError(t, h.svc.OnRelayEvent(ctx, notice()))

	got, err := h.svc.GetLock(ctx, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LockStatusRelayed, got.Status)

	events, err := h.svc.ListRelayEvents(ctx, lock.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "duplicate delivery must not append a second event")
}

func TestRelayEventForUnknownLock(t *testing.T) {
	h := newTestHarness(t, time.Hour, time.Hour)

	err := h.svc.OnRelayEvent(context.Background(), &entities.RelayEvent{
		LockID:         uuid.New(),
		SequenceNumber: 0,
		Kind:           entities.RelayEventLockNotice,
	})
	assert.ErrorIs(t, err, domainerrors.ErrUnknownLock)
}

func TestMintConfirmationGuards(t *testing.T) {
	h := newTestHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	t.Run("unknown lock", func(t *testing.T) {
		err := h.svc.OnMintConfirmed(ctx, uuid.New())
		assert.ErrorIs(t, err, domainerrors.ErrUnknownLock)
	})

	t.Run("confirmation before relay has no effect", func(t *testing.T) {
		lock, err := h.svc.CreateLock(ctx, lockRequest(), "")
		require.NoError(t, err)

		err = h.svc.OnMintConfirmed(ctx, lock.ID)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

		got, err := h.svc.GetLock(ctx, lock.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.LockStatusLocked, got.Status)
	})

	t.Run("duplicate confirmation is rejected without a second transition", func(t *testing.T) {
		lock, err := h.svc.CreateLock(ctx, lockRequest(), "")
		require.NoError(t, err)
		require.NoError(t, h.svc.OnRelayEvent(ctx, &entities.RelayEvent{
			LockID: lock.ID, SequenceNumber: 0, Kind: entities.RelayEventLockNotice,
		}))

		require.NoError(t, h.svc.OnMintConfirmed(ctx, lock.ID))
		err = h.svc.OnMintConfirmed(ctx, lock.ID)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

		got, err := h.svc.GetLock(ctx, lock.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.LockStatusMinted, got.Status)
	})
}

// mintedLock drives a fresh lock to minted.
func mintedLock(t *testing.T, h *testHarness, ctx context.Context) *entities.Lock {
	t.Helper()
	lock, err := h.svc.CreateLock(ctx, lockRequest(), "")
	require.NoError(t, err)
	require.NoError(t, h.svc.OnRelayEvent(ctx, &entities.RelayEvent{
		LockID: lock.ID, SequenceNumber: 0, Kind: entities.RelayEventLockNotice,
	}))
	require.NoError(t, h.svc.OnMintConfirmed(ctx, lock.ID))
	return lock
}

func TestUnlock(t *testing.T) {
	h := newTestHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	t.Run("valid proof completes the lock", func(t *testing.T) {
		lock := mintedLock(t, h, ctx)

		got, err := h.svc.Unlock(ctx, lock.ID, h.proofFor(lock.ID))
		require.NoError(t, err)
		assert.Equal(t, entities.LockStatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("accepted proof fails with reuse on every later attempt", func(t *testing.T) {
		lock := mintedLock(t, h, ctx)
		proof := h.proofFor(lock.ID)

		_, err := h.svc.Unlock(ctx, lock.ID, proof)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err = h.svc.Unlock(ctx, lock.ID, proof)
			assert.ErrorIs(t, err, domainerrors.ErrProofReused)
		}
	})

	t.Run("invalid proof is rejected and not consumed", func(t *testing.T) {
		lock := mintedLock(t, h, ctx)

		_, otherKey, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		forged := crypto.Sign(otherKey, UnlockDigest(lock.ID))

		_, err = h.svc.Unlock(ctx, lock.ID, forged)
		assert.ErrorIs(t, err, domainerrors.ErrProofInvalid)

		// The real proof still works afterwards.
		_, err = h.svc.Unlock(ctx, lock.ID, h.proofFor(lock.ID))
		assert.NoError(t, err)
	})

	t.Run("proof for another lock does not verify", func(t *testing.T) {
		lock := mintedLock(t, h, ctx)
		other := mintedLock(t, h, ctx)

		_, err := h.svc.Unlock(ctx, lock.ID, h.proofFor(other.ID))
		assert.ErrorIs(t, err, domainerrors.ErrProofInvalid)
	})

	t.Run("unlock before mint reports unknown lock", func(t *testing.T) {
		lock, err := h.svc.CreateLock(ctx, lockRequest(), "")
		require.NoError(t, err)

		_, err = h.svc.Unlock(ctx, lock.ID, h.proofFor(lock.ID))
		assert.ErrorIs(t, err, domainerrors.ErrUnknownLock)
	})

	t.Run("unknown lock id", func(t *testing.T) {
		id := uuid.New()
		_, err := h.svc.Unlock(ctx, id, h.proofFor(id))
		assert.ErrorIs(t, err, domainerrors.ErrUnknownLock)
	})
}

func TestTimeoutRevert(t *testing.T) {
	h := newTestHarness(t, time.Millisecond, time.Hour)
	ctx := context.Background()

	lock, err := h.svc.CreateLock(ctx, lockRequest(), "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	reverted, err := h.svc.RevertExpired(ctx, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reverted, 1)

	got, err := h.svc.GetLock(ctx, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LockStatusReverted, got.Status)
	require.NotNil(t, got.RefundedAmount)
	assert.Equal(t, lock.Amount, *got.RefundedAmount, "full amount refunded")

	t.Run("late relay event fails with lock expired", func(t *testing.T) {
		err := h.svc.OnRelayEvent(ctx, &entities.RelayEvent{
			LockID: lock.ID, SequenceNumber: 1, Kind: entities.RelayEventLockNotice,
		})
		assert.ErrorIs(t, err, domainerrors.ErrLockExpired)
	})

	t.Run("late mint confirmation fails with lock expired", func(t *testing.T) {
		err := h.svc.OnMintConfirmed(ctx, lock.ID)
		assert.ErrorIs(t, err, domainerrors.ErrLockExpired)
	})

	t.Run("late proof fails with lock expired", func(t *testing.T) {
		_, err := h.svc.Unlock(ctx, lock.ID, h.proofFor(lock.ID))
		assert.ErrorIs(t, err, domainerrors.ErrLockExpired)
	})

	t.Run("a reverted lock never completes", func(t *testing.T) {
		got, err := h.svc.GetLock(ctx, lock.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.LockStatusReverted, got.Status)
	})
}

func TestMintTimeoutRevert(t *testing.T) {
	h := newTestHarness(t, time.Hour, time.Millisecond)
	ctx := context.Background()

	lock, err := h.svc.CreateLock(ctx, lockRequest(), "")
	require.NoError(t, err)
	require.NoError(t, h.svc.OnRelayEvent(ctx, &entities.RelayEvent{
		LockID: lock.ID, SequenceNumber: 0, Kind: entities.RelayEventLockNotice,
	}))

	time.Sleep(10 * time.Millisecond)
	_, err = h.svc.RevertExpired(ctx, 100)
	require.NoError(t, err)

	got, err := h.svc.GetLock(ctx, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LockStatusReverted, got.Status)
	require.NotNil(t, got.RevertReason)
	assert.Equal(t, RevertReasonMintTimeout, *got.RevertReason)
}

func TestUnlockNoticeIsRecordedWithoutTransition(t *testing.T) {
	h := newTestHarness(t, time.Hour, time.Hour)
	ctx := context.Background()

	lock := mintedLock(t, h, ctx)
	require.NoError(t, h.svc.OnRelayEvent(ctx, &entities.RelayEvent{
		LockID: lock.ID, SequenceNumber: 1, Kind: entities.RelayEventUnlockNotice,
	}))

	got, err := h.svc.GetLock(ctx, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LockStatusMinted, got.Status, "unlock notice informs, the proof settles")

	events, err := h.svc.ListRelayEvents(ctx, lock.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestUnlockDigestIsDeterministic(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, UnlockDigest(id), UnlockDigest(id))
	assert.NotEqual(t, UnlockDigest(id), UnlockDigest(uuid.New()))
}

func TestRequestDigest(t *testing.T) {
	a := lockRequest()
	b := lockRequest()
	assert.Equal(t, requestDigest(a), requestDigest(b))

	b.Amount = 501
	assert.NotEqual(t, requestDigest(a), requestDigest(b))
}
