package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSweeper struct {
	calls atomic.Int32
}

func (f *fakeSweeper) SweepExpired(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return 0, nil
}

func TestStartFinalizationSweepTicksUntilStopped(t *testing.T) {
	sweeper := &fakeSweeper{}
	stop := make(chan struct{})

	StartFinalizationSweep(sweeper, 10*time.Millisecond, stop)

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	close(stop)
	stopped := sweeper.calls.Load()

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, sweeper.calls.Load(), stopped+1, "sweeps must stop after the channel closes")
}
