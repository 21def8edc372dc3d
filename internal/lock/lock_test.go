package redlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLockAndUnlock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "acc_1", "token-a")
	assert.NoError(t, locker.Lock(ctx, time.Minute))

	// second holder cannot take the same key
	other := NewLocker(client, "acc_1", "token-b")
	assert.Error(t, other.Lock(ctx, time.Minute))

	assert.NoError(t, locker.Unlock(ctx))
	assert.NoError(t, other.Lock(ctx, time.Minute))
}

func TestUnlockRequiresHolderToken(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "acc_2", "token-a")
	assert.NoError(t, locker.Lock(ctx, time.Minute))

	impostor := NewLocker(client, "acc_2", "token-b")
	assert.Error(t, impostor.Unlock(ctx))
	assert.NoError(t, locker.Unlock(ctx))
}

func TestExtendLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, "acc_3", "token-a")
	assert.NoError(t, locker.Lock(ctx, time.Second))
	assert.NoError(t, locker.ExtendLock(ctx, time.Minute))

	impostor := NewLocker(client, "acc_3", "token-b")
	assert.Error(t, impostor.ExtendLock(ctx, time.Minute))
}

func TestWaitLockTimesOut(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	holder := NewLocker(client, "acc_4", "token-a")
	assert.NoError(t, holder.Lock(ctx, time.Minute))

	waiter := NewLocker(client, "acc_4", "token-b")
	err := waiter.WaitLock(ctx, time.Minute, 300*time.Millisecond)
	assert.Error(t, err)
}
