package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerialisesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, ConversationKey("919999999999", 1))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locker.size())
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	releaseA, err := locker.Lock(ctx, ConversationKey("1", 1))
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Lock(ctx, ConversationKey("1", 2))
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Equal(t, 0, locker.size())
}

func TestLayeredLocker_WithoutShared(t *testing.T) {
	local := NewLocalLocker()
	locker := NewLayeredLocker(local, nil)

	release, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 1, local.size())
	release()
	assert.Equal(t, 0, local.size())
}

type failingLocker struct{ err error }

func (f failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, f.err
}

func TestLayeredLocker_SharedFailureReleasesLocal(t *testing.T) {
	local := NewLocalLocker()
	locker := NewLayeredLocker(local, failingLocker{err: ErrLockTimeout})

	_, err := locker.Lock(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Equal(t, 0, local.size())
}
