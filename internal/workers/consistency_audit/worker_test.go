package consistency_audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeLockAuditor struct {
	impossible      int64
	withoutProof    int64
	impossibleErr   error
	withoutProofErr error
}

func (f *fakeLockAuditor) CountImpossibleStatus(context.Context) (int64, error) {
	return f.impossible, f.impossibleErr
}

func (f *fakeLockAuditor) CountCompletedWithoutProof(context.Context) (int64, error) {
	return f.withoutProof, f.withoutProofErr
}

type fakeEventAuditor struct {
	orphaned int64
	err      error
}

func (f *fakeEventAuditor) CountOrphaned(context.Context) (int64, error) {
	return f.orphaned, f.err
}

func TestRunOnceCleanState(t *testing.T) {
	w := NewWorker(&fakeLockAuditor{}, &fakeEventAuditor{}, "", zap.NewNop())
	assert.Zero(t, w.RunOnce(context.Background()))
}

func TestRunOnceCountsViolations(t *testing.T) {
	w := NewWorker(
		&fakeLockAuditor{impossible: 1, withoutProof: 2},
		&fakeEventAuditor{orphaned: 3},
		"",
		zap.NewNop(),
	)
	assert.Equal(t, int64(6), w.RunOnce(context.Background()))
}

func TestRunOnceSurvivesQueryErrors(t *testing.T) {
	w := NewWorker(
		&fakeLockAuditor{impossibleErr: errors.New("down"), withoutProof: 1},
		&fakeEventAuditor{err: errors.New("down")},
		"",
		zap.NewNop(),
	)
	// Failed checks are logged and skipped; healthy ones still count.
	assert.Equal(t, int64(1), w.RunOnce(context.Background()))
}
