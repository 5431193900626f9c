// Package bridge owns the lock lifecycle: locked, relayed, minted,
// completed, with reverted as the terminal failure state. Every
// transition for a given lock is serialized through a keyed mutex and
// committed through a guarded update, so duplicate or out-of-order
// relay delivery can never move a lock twice. The replay guards live
// in the schema: the relay event log is keyed by (lock_id, sequence),
// consumed proofs by (lock_id, digest).
package bridge

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/internal/domain/rules"
	"github.com/causeway-service/causeway_service/internal/infrastructure/repositories"
	"github.com/causeway-service/causeway_service/pkg/crypto"
	"github.com/causeway-service/causeway_service/pkg/keyedmutex"
	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/metrics"
)

// Revert reasons recorded when the timeout sweep fires.
const (
	RevertReasonRelayTimeout = "relay_timeout"
	RevertReasonMintTimeout  = "mint_timeout"
)

// Service drives the bridge state machine
type Service struct {
	db          *sqlx.DB
	lockRepo    *repositories.LockRepository
	eventRepo   *repositories.RelayEventRepository
	proofRepo   *repositories.ConsumedProofRepository
	outboxRepo  *repositories.OutboundEventRepository
	locks       *keyedmutex.KeyedMutex
	signerKey   ed25519.PublicKey
	lockTimeout time.Duration
	mintTimeout time.Duration
	logger      *logger.Logger
}

// NewService creates a new bridge service. signerKey is the relay
// signer whose proofs release minted locks.
func NewService(
	db *sqlx.DB,
	lockRepo *repositories.LockRepository,
	eventRepo *repositories.RelayEventRepository,
	proofRepo *repositories.ConsumedProofRepository,
	outboxRepo *repositories.OutboundEventRepository,
	locks *keyedmutex.KeyedMutex,
	signerKey ed25519.PublicKey,
	lockTimeout time.Duration,
	mintTimeout time.Duration,
	logger *logger.Logger,
) *Service {
	return &Service{
		db:          db,
		lockRepo:    lockRepo,
		eventRepo:   eventRepo,
		proofRepo:   proofRepo,
		outboxRepo:  outboxRepo,
		locks:       locks,
		signerKey:   signerKey,
		lockTimeout: lockTimeout,
		mintTimeout: mintTimeout,
		logger:      logger,
	}
}

// CreateLock opens a new lock and enqueues the outbound lock notice in
// the same transaction. When an idempotency key is supplied, a replay
// of the same request returns the original lock and a reuse of the key
// with a different request conflicts. Without a key every call opens a
// fresh lock.
func (s *Service) CreateLock(ctx context.Context, req *entities.CreateLockRequest, idempotencyKey string) (*entities.Lock, error) {
	if err := rules.Check(req.Amount > 0, domainerrors.ValidationError("amount", "must be positive")); err != nil {
		metrics.RecordValidationFailure("lock", domainerrors.GetErrorCode(err))
		return nil, err
	}

	requestHash := requestDigest(req)
	if idempotencyKey != "" {
		existing, err := s.lockRepo.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("check idempotency: %w", err)
		}
		if existing != nil {
			return s.replayExisting(existing, idempotencyKey, requestHash)
		}
	}

	now := time.Now().UTC()
	lock := &entities.Lock{
		ID:               uuid.New(),
		Sender:           req.Sender,
		Recipient:        req.Recipient,
		Amount:           req.Amount,
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		Status:           entities.LockStatusLocked,
		LockedAt:         now,
		RelayDeadline:    now.Add(s.lockTimeout),
	}
	if idempotencyKey != "" {
		lock.IdempotencyKey = &idempotencyKey
		lock.RequestHash = &requestHash
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockRepo.CreateTx(ctx, tx, lock); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) && idempotencyKey != "" {
			// Lost a race on the idempotency key; fall back to the
			// winner's row.
			existing, getErr := s.lockRepo.GetByIdempotencyKey(ctx, idempotencyKey)
			if getErr != nil || existing == nil {
				return nil, fmt.Errorf("resolve idempotency race: %w", err)
			}
			return s.replayExisting(existing, idempotencyKey, requestHash)
		}
		return nil, err
	}

	if err := s.outboxRepo.InsertTx(ctx, tx, lock.ID, entities.OutboundLockCreated, s.noticePayload(lock)); err != nil {
		return nil, fmt.Errorf("enqueue lock notice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	metrics.RecordLockTransition("none", string(entities.LockStatusLocked))
	s.logger.Info("Lock created",
		"lock_id", lock.ID,
		"amount", lock.Amount,
		"source_chain", lock.SourceChain,
		"destination_chain", lock.DestinationChain,
		"relay_deadline", lock.RelayDeadline)
	return lock, nil
}

// replayExisting resolves an idempotency-key hit: the same request
// comes back idempotently, a different request under the same key
// conflicts.
func (s *Service) replayExisting(existing *entities.Lock, key, requestHash string) (*entities.Lock, error) {
	if existing.RequestHash != nil && *existing.RequestHash == requestHash {
		s.logger.Info("Lock already exists (idempotent)",
			"idempotency_key", key,
			"lock_id", existing.ID)
		return existing, nil
	}
	return nil, domainerrors.ConflictError("lock", "idempotency key reused with a different request")
}

// OnRelayEvent records a relay observation and, for a lock notice on a
// locked lock, advances it to relayed. A duplicate (lock, sequence)
// delivery is a no-op, not an error; an event for an unknown lock
// fails with ErrUnknownLock but leaves the machine untouched; an event
// for a reverted lock fails with ErrLockExpired.
func (s *Service) OnRelayEvent(ctx context.Context, event *entities.RelayEvent) error {
	if !event.Kind.IsValid() {
		return domainerrors.ValidationError("kind", "unsupported relay event kind")
	}
	if event.SequenceNumber < 0 {
		return domainerrors.ValidationError("sequence_number", "must be non-negative")
	}

	release := s.locks.Lock(event.LockID.String())
	defer release()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	lock, err := s.lockRepo.GetByIDTx(ctx, tx, event.LockID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			s.logger.Warn("Relay event for unknown lock",
				"lock_id", event.LockID,
				"sequence_number", event.SequenceNumber)
			return domainerrors.ErrUnknownLock
		}
		return err
	}
	if err := s.guardStatus(lock); err != nil {
		return err
	}
	if lock.Status == entities.LockStatusReverted {
		return domainerrors.ErrLockExpired
	}

	if event.ObservedAt.IsZero() {
		event.ObservedAt = time.Now().UTC()
	}
	inserted, err := s.eventRepo.InsertTx(ctx, tx, event)
	if err != nil {
		return fmt.Errorf("record relay event: %w", err)
	}
	if !inserted {
		// Same (lock, sequence) seen before: at-least-once delivery,
		// not an error.
		metrics.RecordReplayRejection("relay_event")
		s.logger.Info("Duplicate relay event ignored",
			"lock_id", event.LockID,
			"sequence_number", event.SequenceNumber)
		return tx.Commit()
	}

	if event.Kind == entities.RelayEventLockNotice && lock.Status == entities.LockStatusLocked {
		mintDeadline := time.Now().UTC().Add(s.mintTimeout)
		ok, err := s.lockRepo.MarkRelayedTx(ctx, tx, lock.ID, mintDeadline)
		if err != nil {
			return err
		}
		if !ok {
			return s.corrupt(lock.ID, "lock vanished during relay transition")
		}
		if err := s.outboxRepo.InsertTx(ctx, tx, lock.ID, entities.OutboundLockRelayed, s.noticePayload(lock)); err != nil {
			return fmt.Errorf("enqueue relay notice: %w", err)
		}
		metrics.RecordLockTransition(string(entities.LockStatusLocked), string(entities.LockStatusRelayed))
		s.logger.Info("Lock relayed",
			"lock_id", lock.ID,
			"sequence_number", event.SequenceNumber,
			"mint_deadline", mintDeadline)
	}

	return tx.Commit()
}

// OnMintConfirmed advances a relayed lock to minted once the
// destination confirms issuance. A confirmation for a lock in any
// other live status fails with ErrInvalidTransition and has no effect,
// so a stray or duplicated confirmation cannot double-count a mint.
func (s *Service) OnMintConfirmed(ctx context.Context, lockID uuid.UUID) error {
	release := s.locks.Lock(lockID.String())
	defer release()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	lock, err := s.lockRepo.GetByIDTx(ctx, tx, lockID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.ErrUnknownLock
		}
		return err
	}
	if err := s.guardStatus(lock); err != nil {
		return err
	}
	if lock.Status == entities.LockStatusReverted {
		return domainerrors.ErrLockExpired
	}
	if lock.Status != entities.LockStatusRelayed {
		metrics.RecordReplayRejection("mint_confirmation")
		s.logger.Warn("Mint confirmation out of order",
			"lock_id", lockID,
			"status", lock.Status)
		return domainerrors.ErrInvalidTransition
	}

	ok, err := s.lockRepo.MarkMintedTx(ctx, tx, lockID)
	if err != nil {
		return err
	}
	if !ok {
		return s.corrupt(lockID, "lock vanished during mint transition")
	}
	if err := s.outboxRepo.InsertTx(ctx, tx, lockID, entities.OutboundLockMinted, s.noticePayload(lock)); err != nil {
		return fmt.Errorf("enqueue mint notice: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	metrics.RecordLockTransition(string(entities.LockStatusRelayed), string(entities.LockStatusMinted))
	s.logger.Info("Lock minted", "lock_id", lockID)
	return nil
}

// Unlock verifies the relay signer's proof for a minted lock, consumes
// it, and completes the lock. The proof is spent and the transition
// committed in one transaction, so a proof can release a lock at most
// once no matter how many times it is presented. An already-consumed
// proof fails with ErrProofReused even after the lock completed.
func (s *Service) Unlock(ctx context.Context, lockID uuid.UUID, proof []byte) (*entities.Lock, error) {
	release := s.locks.Lock(lockID.String())
	defer release()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	lock, err := s.lockRepo.GetByIDTx(ctx, tx, lockID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrUnknownLock
		}
		return nil, err
	}
	if err := s.guardStatus(lock); err != nil {
		return nil, err
	}
	if lock.Status == entities.LockStatusReverted {
		return nil, domainerrors.ErrLockExpired
	}

	digest := crypto.DigestHex(proof)
	consumed, err := s.proofRepo.IsConsumedTx(ctx, tx, lockID, digest)
	if err != nil {
		return nil, err
	}
	if consumed {
		metrics.RecordReplayRejection("proof")
		metrics.RecordProofConsumption("reused")
		s.logger.Warn("Unlock proof replayed", "lock_id", lockID)
		return nil, domainerrors.ErrProofReused
	}

	if lock.Status != entities.LockStatusMinted {
		return nil, domainerrors.ErrUnknownLock
	}

	if !crypto.VerifySignature(s.signerKey, UnlockDigest(lockID), proof) {
		metrics.RecordProofConsumption("invalid")
		s.logger.Warn("Unlock proof rejected", "lock_id", lockID)
		return nil, domainerrors.ErrProofInvalid
	}

	inserted, err := s.proofRepo.ConsumeTx(ctx, tx, lockID, digest)
	if err != nil {
		return nil, err
	}
	if !inserted {
		metrics.RecordProofConsumption("reused")
		return nil, domainerrors.ErrProofReused
	}

	now := time.Now().UTC()
	ok, err := s.lockRepo.MarkCompletedTx(ctx, tx, lockID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.corrupt(lockID, "lock vanished during unlock transition")
	}
	if err := s.outboxRepo.InsertTx(ctx, tx, lockID, entities.OutboundLockCompleted, s.noticePayload(lock)); err != nil {
		return nil, fmt.Errorf("enqueue completion notice: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	lock.Status = entities.LockStatusCompleted
	lock.CompletedAt = &now
	metrics.RecordProofConsumption("accepted")
	metrics.RecordLockTransition(string(entities.LockStatusMinted), string(entities.LockStatusCompleted))
	s.logger.Info("Lock completed", "lock_id", lockID)
	return lock, nil
}

// GetLock retrieves a lock, failing with ErrUnknownLock when absent.
func (s *Service) GetLock(ctx context.Context, lockID uuid.UUID) (*entities.Lock, error) {
	lock, err := s.lockRepo.GetByID(ctx, lockID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrUnknownLock
		}
		return nil, err
	}
	if err := s.guardStatus(lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// ListRelayEvents returns the append-only event log for a lock in
// sequence order.
func (s *Service) ListRelayEvents(ctx context.Context, lockID uuid.UUID) ([]*entities.RelayEvent, error) {
	if _, err := s.GetLock(ctx, lockID); err != nil {
		return nil, err
	}
	return s.eventRepo.ListByLock(ctx, lockID)
}

// RevertExpired reverts locks that missed their deadline: locked past
// the relay deadline and relayed past the mint deadline. The full
// amount is recorded as refunded. Each lock is handled independently,
// so one failure does not stop the sweep. Returns the revert count.
func (s *Service) RevertExpired(ctx context.Context, batchSize int) (int, error) {
	expired, err := s.lockRepo.GetExpired(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("get expired locks: %w", err)
	}

	reverted := 0
	for _, lock := range expired {
		if err := s.revertOne(ctx, lock.ID); err != nil {
			s.logger.Error("Failed to revert expired lock",
				"lock_id", lock.ID,
				"error", err)
			continue
		}
		reverted++
	}
	return reverted, nil
}

// revertOne re-reads the lock under its mutex and reverts it if it is
// still expired. A lock that advanced since the sweep query is left
// alone.
func (s *Service) revertOne(ctx context.Context, lockID uuid.UUID) error {
	release := s.locks.Lock(lockID.String())
	defer release()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	lock, err := s.lockRepo.GetByIDTx(ctx, tx, lockID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var reason string
	switch {
	case lock.Status == entities.LockStatusLocked && lock.RelayDeadline.Before(now):
		reason = RevertReasonRelayTimeout
	case lock.Status == entities.LockStatusRelayed && lock.MintDeadline != nil && lock.MintDeadline.Before(now):
		reason = RevertReasonMintTimeout
	default:
		// Advanced past the deadline window since the sweep query.
		return nil
	}

	ok, err := s.lockRepo.MarkRevertedTx(ctx, tx, lockID, lock.Status, reason, lock.Amount)
	if err != nil {
		return err
	}
	if !ok {
		return s.corrupt(lockID, "lock vanished during revert transition")
	}
	if err := s.outboxRepo.InsertTx(ctx, tx, lockID, entities.OutboundLockReverted, s.noticePayload(lock)); err != nil {
		return fmt.Errorf("enqueue revert notice: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	metrics.LocksReverted.WithLabelValues(string(lock.Status)).Inc()
	metrics.RecordLockTransition(string(lock.Status), string(entities.LockStatusReverted))
	s.logger.Warn("Lock reverted",
		"lock_id", lockID,
		"from", lock.Status,
		"reason", reason,
		"refunded_amount", lock.Amount)
	return nil
}

// StatusCounts exposes lock counts per status for the health surface
// and the audit worker.
func (s *Service) StatusCounts(ctx context.Context) (map[entities.LockStatus]int64, error) {
	return s.lockRepo.CountByStatus(ctx)
}

// guardStatus surfaces structural corruption: a persisted status
// outside the state machine is an operator problem, never repaired
// here.
func (s *Service) guardStatus(lock *entities.Lock) error {
	if lock.Status.IsValid() {
		return nil
	}
	metrics.ConsistencyViolations.WithLabelValues("impossible_status").Inc()
	s.logger.Error("Lock has impossible status",
		"lock_id", lock.ID,
		"status", lock.Status)
	return domainerrors.InternalError(
		fmt.Sprintf("lock %s has impossible status %q", lock.ID, lock.Status), nil)
}

// corrupt reports a guarded transition that affected no rows even
// though the row was read FOR UPDATE in the same transaction.
func (s *Service) corrupt(lockID uuid.UUID, detail string) error {
	metrics.ConsistencyViolations.WithLabelValues("lost_update").Inc()
	s.logger.Error("Lock state corrupted",
		"lock_id", lockID,
		"detail", detail)
	return domainerrors.InternalError(detail, nil)
}

// noticePayload is the outbound event body consumed by the relay.
func (s *Service) noticePayload(lock *entities.Lock) map[string]interface{} {
	return map[string]interface{}{
		"lock_id":           lock.ID,
		"sender":            lock.Sender,
		"recipient":         lock.Recipient,
		"amount":            lock.Amount,
		"source_chain":      lock.SourceChain,
		"destination_chain": lock.DestinationChain,
		"status":            lock.Status,
	}
}

// UnlockDigest is the canonical message a relay signer signs to
// authorize releasing a lock.
func UnlockDigest(lockID uuid.UUID) []byte {
	return crypto.CanonicalDigest("unlock:" + lockID.String())
}

// requestDigest fingerprints a lock request for idempotency-key
// comparison.
func requestDigest(req *entities.CreateLockRequest) string {
	material := fmt.Sprintf("%s|%s|%d|%s|%s",
		req.Sender, req.Recipient, req.Amount, req.SourceChain, req.DestinationChain)
	return crypto.DigestHex(crypto.CanonicalBytes(material))
}
