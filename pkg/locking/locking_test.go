package locking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldservice/pkg/apperrors"
)

func TestManager_AcquireRelease(t *testing.T) {
	m := NewManager(time.Second)

	release, err := m.Acquire(context.Background(), TicketKey(1))
	require.NoError(t, err)
	release()

	// Reacquirable after release.
	release, err = m.Acquire(context.Background(), TicketKey(1))
	require.NoError(t, err)
	release()
}

func TestManager_TimeoutYieldsConcurrencyConflict(t *testing.T) {
	m := NewManager(50 * time.Millisecond)

	release, err := m.Acquire(context.Background(), PartKey(3))
	require.NoError(t, err)
	defer release()

	_, err = m.Acquire(context.Background(), PartKey(3))
	assert.True(t, apperrors.IsConcurrencyConflict(err))
}

func TestManager_IndependentKeysDoNotBlock(t *testing.T) {
	m := NewManager(50 * time.Millisecond)

	r1, err := m.Acquire(context.Background(), PartKey(1))
	require.NoError(t, err)
	defer r1()

	r2, err := m.Acquire(context.Background(), PartKey(2))
	require.NoError(t, err)
	defer r2()
}

func TestManager_AcquireManyReleasesOnFailure(t *testing.T) {
	m := NewManager(50 * time.Millisecond)

	// Hold one of the keys so the batch acquisition fails.
	release, err := m.Acquire(context.Background(), PartKey(2))
	require.NoError(t, err)

	_, err = m.AcquireMany(context.Background(), []string{PartKey(1), PartKey(2)})
	assert.True(t, apperrors.IsConcurrencyConflict(err))

	release()

	// The failed batch must have released PartKey(1).
	releaseAll, err := m.AcquireMany(context.Background(), []string{PartKey(1), PartKey(2)})
	require.NoError(t, err)
	releaseAll()
}

func TestManager_AcquireManyDeduplicates(t *testing.T) {
	m := NewManager(50 * time.Millisecond)

	releaseAll, err := m.AcquireMany(context.Background(), []string{PartKey(5), PartKey(5)})
	require.NoError(t, err)
	releaseAll()
}

// Two workers repeatedly locking overlapping part sets in arbitrary
// input order must never deadlock: AcquireMany imposes the sorted order.
func TestManager_OrderedAcquisitionAvoidsDeadlock(t *testing.T) {
	m := NewManager(2 * time.Second)
	keysA := []string{PartKey(1), PartKey(2), PartKey(3)}
	keysB := []string{PartKey(3), PartKey(1), PartKey(2)}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		keys := keysA
		if i == 1 {
			keys = keysB
		}
		wg.Add(1)
		go func(keys []string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				releaseAll, err := m.AcquireMany(context.Background(), keys)
				assert.NoError(t, err)
				releaseAll()
			}
		}(keys)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("workers deadlocked")
	}
}

func TestManager_CancelledContext(t *testing.T) {
	m := NewManager(time.Minute)

	release, err := m.Acquire(context.Background(), TicketKey(9))
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx, TicketKey(9))
	assert.True(t, apperrors.IsConcurrencyConflict(err))
}
