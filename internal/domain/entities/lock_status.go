package entities

import "fmt"

// LockStatus represents the lifecycle status of a bridge lock
type LockStatus string

const (
	LockStatusLocked    LockStatus = "locked"
	LockStatusRelayed   LockStatus = "relayed"
	LockStatusMinted    LockStatus = "minted"
	LockStatusCompleted LockStatus = "completed"
	LockStatusReverted  LockStatus = "reverted"
)

// ValidLockStatuses contains all valid lock statuses
var ValidLockStatuses = map[LockStatus]bool{
	LockStatusLocked:    true,
	LockStatusRelayed:   true,
	LockStatusMinted:    true,
	LockStatusCompleted: true,
	LockStatusReverted:  true,
}

// ValidLockTransitions defines allowed status transitions. Reverted is
// reachable only from locked and relayed, and only the timeout sweep
// drives it. Minted never reverts.
var ValidLockTransitions = map[LockStatus][]LockStatus{
	LockStatusLocked:    {LockStatusRelayed, LockStatusReverted},
	LockStatusRelayed:   {LockStatusMinted, LockStatusReverted},
	LockStatusMinted:    {LockStatusCompleted},
	LockStatusCompleted: {}, // Terminal state
	LockStatusReverted:  {}, // Terminal state
}

// IsValid checks if the status is a valid lock status
func (s LockStatus) IsValid() bool {
	return ValidLockStatuses[s]
}

// CanTransitionTo checks if transition to new status is allowed
func (s LockStatus) CanTransitionTo(newStatus LockStatus) bool {
	allowed, exists := ValidLockTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s LockStatus) IsTerminal() bool {
	return s == LockStatusCompleted || s == LockStatusReverted
}

// ValidateTransition validates and returns error if transition is invalid
func (s LockStatus) ValidateTransition(newStatus LockStatus) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid lock status: %s", newStatus)
	}
	if !s.CanTransitionTo(newStatus) {
		return fmt.Errorf("invalid status transition from %s to %s", s, newStatus)
	}
	return nil
}
