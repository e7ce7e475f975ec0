package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSet_Exclusive(t *testing.T) {
	l := newLockSet()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "green-eth")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "one holder at a time")
}

func TestLockSet_IndependentMaterials(t *testing.T) {
	l := newLockSet()

	releaseA, err := l.Acquire(context.Background(), "green-eth")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "green-bra")
	require.NoError(t, err, "a different material must not wait")
	releaseB()
}

func TestLockSet_OverlappingSetsDoNotDeadlock(t *testing.T) {
	l := newLockSet()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		ids := []string{"green-eth", "green-bra"}
		if i%2 == 1 {
			ids = []string{"green-bra", "green-eth"}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, ids...)
			if assert.NoError(t, err) {
				release()
			}
		}()
	}
	wg.Wait()
}

func TestLockSet_CancelReleasesPartialHold(t *testing.T) {
	l := newLockSet()

	holdEth, err := l.Acquire(context.Background(), "green-eth")
	require.NoError(t, err)
	defer holdEth()

	// green-bra sorts first: it is taken, then the wait on green-eth times out.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "green-eth", "green-bra")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	quick, cancelQuick := context.WithTimeout(context.Background(), time.Second)
	defer cancelQuick()
	release, err := l.Acquire(quick, "green-bra")
	require.NoError(t, err, "green-bra must have been released on cancellation")
	release()
}

func TestLockSet_DuplicateIDs(t *testing.T) {
	l := newLockSet()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	release, err := l.Acquire(ctx, "green-eth", "green-eth")
	require.NoError(t, err, "a duplicated id must not self-deadlock")
	release()
}
