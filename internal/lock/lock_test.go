package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "C1")
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
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Held())
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	u1, err := l.Lock(context.Background(), "C1")
	require.NoError(t, err)
	defer u1()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	u2, err := l.Lock(ctx, "C2")
	require.NoError(t, err)
	u2()
}

func TestLocal_ContextCancelWhileWaiting(t *testing.T) {
	l := NewLocal()
	u1, err := l.Lock(context.Background(), "C1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "C1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	u1()
	u1() // second call is a no-op
	assert.Equal(t, 0, l.Held())
}

func setupRedis(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	opts = append([]RedisOption{WithRetryInterval(5 * time.Millisecond)}, opts...)
	return NewRedis(rdb, opts...), mr
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	l, mr := setupRedis(t)

	unlock, err := l.Lock(context.Background(), "C1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("ledger:lock:C1"))

	unlock()
	assert.False(t, mr.Exists("ledger:lock:C1"))
}

func TestRedis_ContendedLockTimesOut(t *testing.T) {
	l, _ := setupRedis(t)

	unlock, err := l.Lock(context.Background(), "C1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "C1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedis_WaiterAcquiresAfterRelease(t *testing.T) {
	l, _ := setupRedis(t)

	unlock, err := l.Lock(context.Background(), "C1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		u, err := l.Lock(context.Background(), "C1")
		if err == nil {
			u()
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	unlock()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestRedis_ExpiredLockIsNotReleasedByStaleHolder(t *testing.T) {
	l, mr := setupRedis(t, WithTTL(time.Second))

	stale, err := l.Lock(context.Background(), "C1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.Lock(context.Background(), "C1")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("ledger:lock:C1"))
	fresh()
	assert.False(t, mr.Exists("ledger:lock:C1"))
}

func TestRedis_PrefixAndURL(t *testing.T) {
	l := NewRedis(nil, WithPrefix("app:lock"))
	assert.Equal(t, "app:lock:C1", l.key("C1"))

	_, _, err := NewRedisFromURL("not-a-url")
	assert.Error(t, err)

	_, client, err := NewRedisFromURL("redis://localhost:6379/0")
	require.NoError(t, err)
	client.Close()
}
