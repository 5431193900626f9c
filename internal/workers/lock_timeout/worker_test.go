package lock_timeout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/causeway-service/causeway_service/pkg/logger"
)

type fakeReverter struct {
	calls     int
	batchSize int
	reverted  int
	err       error
}

func (f *fakeReverter) RevertExpired(_ context.Context, batchSize int) (int, error) {
	f.calls++
	f.batchSize = batchSize
	return f.reverted, f.err
}

func TestRunOnceSweeps(t *testing.T) {
	fake := &fakeReverter{reverted: 3}
	w := NewWorker(fake, &Config{BatchSize: 25}, logger.NewNop())

	w.RunOnce(context.Background())

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 25, fake.batchSize)
}

func TestRunOnceSurvivesSweepError(t *testing.T) {
	fake := &fakeReverter{err: errors.New("database down")}
	w := NewWorker(fake, nil, logger.NewNop())

	// Must not panic; the next tick retries.
	w.RunOnce(context.Background())
	assert.Equal(t, 1, fake.calls)
}

func TestNilConfigUsesDefaults(t *testing.T) {
	fake := &fakeReverter{}
	w := NewWorker(fake, nil, logger.NewNop())

	w.RunOnce(context.Background())
	assert.Equal(t, DefaultConfig().BatchSize, fake.batchSize)
}
