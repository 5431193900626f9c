package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places a base-unit amount carries
// when rendered for API consumers. Arithmetic always stays on int64 base
// units; decimal is presentation only.
const AmountScale = 6

// Lock represents a bridged amount held on the source side until the
// destination mint is proven or the lock times out.
type Lock struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	Sender           string     `json:"sender" db:"sender"`
	Recipient        string     `json:"recipient" db:"recipient"`
	Amount           int64      `json:"amount" db:"amount"`
	SourceChain      string     `json:"source_chain" db:"source_chain"`
	DestinationChain string     `json:"destination_chain" db:"destination_chain"`
	Status           LockStatus `json:"status" db:"status"`
	IdempotencyKey   *string    `json:"-" db:"idempotency_key"`
	RequestHash      *string    `json:"-" db:"request_hash"`
	LockedAt         time.Time  `json:"locked_at" db:"locked_at"`
	RelayDeadline    time.Time  `json:"relay_deadline" db:"relay_deadline"`
	MintDeadline     *time.Time `json:"mint_deadline,omitempty" db:"mint_deadline"`
	RefundedAmount   *int64     `json:"refunded_amount,omitempty" db:"refunded_amount"`
	RevertReason     *string    `json:"revert_reason,omitempty" db:"revert_reason"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	RevertedAt       *time.Time `json:"reverted_at,omitempty" db:"reverted_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// AmountDecimal renders the base-unit amount at the configured scale.
func (l *Lock) AmountDecimal() decimal.Decimal {
	return decimal.New(l.Amount, -AmountScale)
}

// RelayEventKind identifies the kind of event observed from the relay.
type RelayEventKind string

const (
	// RelayEventLockNotice reports that the relay observed the lock and
	// forwarded it toward the destination.
	RelayEventLockNotice RelayEventKind = "lock_notice"
	// RelayEventUnlockNotice reports that the relay observed a burn or
	// release on the destination and expects the source to settle.
	RelayEventUnlockNotice RelayEventKind = "unlock_notice"
)

// IsValid reports whether the kind is one the bridge accepts.
func (k RelayEventKind) IsValid() bool {
	return k == RelayEventLockNotice || k == RelayEventUnlockNotice
}

// RelayEvent is an append-only record of a relay observation. The
// primary key (lock_id, sequence_number) is the replay guard: a
// sequence number is recorded at most once per lock.
type RelayEvent struct {
	LockID         uuid.UUID       `json:"lock_id" db:"lock_id"`
	SequenceNumber int64           `json:"sequence_number" db:"sequence_number"`
	Kind           RelayEventKind  `json:"kind" db:"kind"`
	Payload        json.RawMessage `json:"payload,omitempty" db:"payload"`
	ObservedAt     time.Time       `json:"observed_at" db:"observed_at"`
}

// ConsumedProof records a spent unlock proof. The unique
// (lock_id, proof_digest) pair makes proof consumption single-shot even
// under concurrent unlock attempts.
type ConsumedProof struct {
	LockID      uuid.UUID `json:"lock_id" db:"lock_id"`
	ProofDigest string    `json:"proof_digest" db:"proof_digest"`
	ConsumedAt  time.Time `json:"consumed_at" db:"consumed_at"`
}

// OutboundEventStatus tracks outbox dispatch state
type OutboundEventStatus string

const (
	OutboundEventPending    OutboundEventStatus = "pending"
	OutboundEventDispatched OutboundEventStatus = "dispatched"
	OutboundEventFailed     OutboundEventStatus = "failed"
)

// Outbound event kinds emitted on lock lifecycle changes
const (
	OutboundLockCreated   = "lock_created"
	OutboundLockRelayed   = "lock_relayed"
	OutboundLockMinted    = "lock_minted"
	OutboundLockCompleted = "lock_completed"
	OutboundLockReverted  = "lock_reverted"
)

// OutboundEvent is an outbox row written in the same transaction as the
// lock change it announces, dispatched asynchronously to the relay
// stream.
type OutboundEvent struct {
	ID           uuid.UUID           `json:"id" db:"id"`
	LockID       uuid.UUID           `json:"lock_id" db:"lock_id"`
	Kind         string              `json:"kind" db:"kind"`
	Payload      json.RawMessage     `json:"payload" db:"payload"`
	Status       OutboundEventStatus `json:"status" db:"status"`
	AttemptCount int                 `json:"attempt_count" db:"attempt_count"`
	LastError    *string             `json:"last_error,omitempty" db:"last_error"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	DispatchedAt *time.Time          `json:"dispatched_at,omitempty" db:"dispatched_at"`
}

// === Bridge Request/Response Models ===

// CreateLockRequest represents a request to open a new lock. Amount
// carries no binding rule so non-positive values reach the bridge
// validator and come back as domain errors rather than generic binding
// failures.
type CreateLockRequest struct {
	Sender           string `json:"sender" binding:"required,min=1,max=128"`
	Recipient        string `json:"recipient" binding:"required,min=1,max=128"`
	Amount           int64  `json:"amount"`
	SourceChain      string `json:"source_chain" binding:"required,min=1,max=64"`
	DestinationChain string `json:"destination_chain" binding:"required,min=1,max=64"`
}

// LockResponse is the API view of a lock
type LockResponse struct {
	ID               uuid.UUID  `json:"id"`
	Sender           string     `json:"sender"`
	Recipient        string     `json:"recipient"`
	Amount           int64      `json:"amount"`
	AmountDisplay    string     `json:"amount_display"`
	SourceChain      string     `json:"source_chain"`
	DestinationChain string     `json:"destination_chain"`
	Status           LockStatus `json:"status"`
	LockedAt         time.Time  `json:"locked_at"`
	RelayDeadline    time.Time  `json:"relay_deadline"`
	MintDeadline     *time.Time `json:"mint_deadline,omitempty"`
	RefundedAmount   *int64     `json:"refunded_amount,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RevertedAt       *time.Time `json:"reverted_at,omitempty"`
	RevertReason     *string    `json:"revert_reason,omitempty"`
}

// ToResponse converts a lock to its API representation
func (l *Lock) ToResponse() *LockResponse {
	return &LockResponse{
		ID:               l.ID,
		Sender:           l.Sender,
		Recipient:        l.Recipient,
		Amount:           l.Amount,
		AmountDisplay:    l.AmountDecimal().StringFixed(AmountScale),
		SourceChain:      l.SourceChain,
		DestinationChain: l.DestinationChain,
		Status:           l.Status,
		LockedAt:         l.LockedAt,
		RelayDeadline:    l.RelayDeadline,
		MintDeadline:     l.MintDeadline,
		RefundedAmount:   l.RefundedAmount,
		CompletedAt:      l.CompletedAt,
		RevertedAt:       l.RevertedAt,
		RevertReason:     l.RevertReason,
	}
}

// RelayNoticeRequest is the webhook payload delivered by the relay when
// it observes a lock. It is decoded from the raw signed body, so
// validation runs through validator tags rather than gin binding.
// SequenceNumber is a pointer so sequence zero survives the required
// check.
type RelayNoticeRequest struct {
	LockID         uuid.UUID       `json:"lock_id" validate:"required"`
	SequenceNumber *int64          `json:"sequence_number" validate:"required,min=0"`
	Kind           RelayEventKind  `json:"kind" validate:"required"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// UnlockRequest carries the relay-signed proof that releases a minted
// lock. Proof is hex-encoded.
type UnlockRequest struct {
	Proof string `json:"proof" binding:"required,min=1"`
}

// UnlockResponse confirms a completed unlock
type UnlockResponse struct {
	LockID      uuid.UUID  `json:"lock_id"`
	Status      LockStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
