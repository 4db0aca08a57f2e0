package scheduler_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/scheduler"
)

func TestGuard_TryAcquire(t *testing.T) {
	t.Parallel()

	g := scheduler.NewGuard()

	release, ok := g.TryAcquire("a")
	require.True(t, ok)
	assert.Equal(t, scheduler.StateRunning, g.State("a"))

	second, ok := g.TryAcquire("a")
	assert.False(t, ok)
	assert.Nil(t, second)

	other, ok := g.TryAcquire("b")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, g.Running())
	other()

	release()
	release()
	assert.Equal(t, scheduler.StateIdle, g.State("a"))

	again, ok := g.TryAcquire("a")
	require.True(t, ok)
	again()
}

func TestGuard_ConcurrentAcquireSingleWinner(t *testing.T) {
	t.Parallel()

	g := scheduler.NewGuard()

	const contenders = 64
	var (
		wins  atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := g.TryAcquire("src"); ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
