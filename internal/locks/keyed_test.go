package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locker := NewKeyedMutex()
	ctx := context.Background()

	const workers = 16
	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := locker.Acquire(ctx, "invoice:1", time.Second)
			require.NoError(t, err)
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locker := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "invoice:1", time.Second)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Acquire(ctx, "invoice:2", time.Second)
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}
	releaseA()
}

func TestKeyedMutexReleaseIsIdempotent(t *testing.T) {
	locker := NewKeyedMutex()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "invoice:1", time.Second)
	require.NoError(t, err)
	release()
	release()

	again, err := locker.Acquire(ctx, "invoice:1", time.Second)
	require.NoError(t, err)
	again()
}

func TestKeyedMutexCancelledContext(t *testing.T) {
	locker := NewKeyedMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := locker.Acquire(ctx, "invoice:1", time.Second)
	assert.Error(t, err)
}
