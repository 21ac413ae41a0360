package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTimer_ReusedTimerIsRearmed(t *testing.T) {
	// a stopped, unfired timer goes back to the pool
	stale := GetTimer(time.Hour)
	PutTimer(stale)

	start := time.Now()
	timer := GetTimer(30 * time.Millisecond)
	defer PutTimer(timer)

	select {
	case fired := <-timer.C:
		assert.GreaterOrEqual(t, fired.Sub(start), 25*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestPutTimer_FiredTimer(t *testing.T) {
	timer := GetTimer(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	// the pending tick must not leak into the next user
	PutTimer(timer)

	next := GetTimer(50 * time.Millisecond)
	defer PutTimer(next)

	select {
	case <-next.C:
		t.Fatal("stale tick delivered")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSleep(t *testing.T) {
	t.Run("elapsed", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	})

	t.Run("concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, Sleep(context.Background(), time.Millisecond))
			}()
		}
		wg.Wait()
	})
}
