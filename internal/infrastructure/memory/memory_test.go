package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

func newExec(id string, locked bool, def string, min, max int) *executor.Executor {
	return &executor.Executor{
		ExecutorID: id,
		Name:       id,
		Address:    "127.0.0.1",
		Port:       8000,
		Locked:     locked,
		ServiceDefinitions: []executor.ServiceDefinition{
			{ServiceDefinition: def, MinVersion: min, MaxVersion: max},
		},
	}
}

func TestExecutorDirectoryFindByCapability(t *testing.T) {
	ctx := context.Background()
	d := NewExecutorDirectory()
	require.NoError(t, d.Create(ctx, newExec("e2", false, "x", 1, 3)))
	require.NoError(t, d.Create(ctx, newExec("e1", true, "x", 1, 3)))
	require.NoError(t, d.Create(ctx, newExec("e3", false, "x", 5, 9)))
	require.NoError(t, d.Create(ctx, newExec("e4", false, "y", 1, 3)))

	found, err := d.FindByCapability(ctx, "x", 2, 4)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "e1", found[0].ExecutorID)
	assert.Equal(t, "e2", found[1].ExecutorID)

	found[0].Locked = false
	fresh, err := d.FindByID(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, fresh.Locked, "returned records must be copies")
}

func TestExecutorDirectoryLocking(t *testing.T) {
	ctx := context.Background()
	d := NewExecutorDirectory()
	require.NoError(t, d.Create(ctx, newExec("e1", false, "x", 1, 1)))

	res, err := d.TrySetLocked(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, executor.ClaimSuccess, res)

	res, err = d.TrySetLocked(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, executor.ClaimAlreadyLocked, res)

	res, err = d.TrySetLocked(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, executor.ClaimAbsent, res)

	require.NoError(t, d.Unlock(ctx, "e1"))
	assert.ErrorIs(t, d.Unlock(ctx, "missing"), executor.ErrNotFound)

	fresh, err := d.FindByID(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, fresh.Locked)

	missing, err := d.FindByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExecutorDirectoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	d := NewExecutorDirectory()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, d.Create(ctx, newExec(id, false, "x", 1, 1)))
	}

	page, err := d.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ExecutorID)
	assert.Equal(t, "b", page[1].ExecutorID)

	page, err = d.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ExecutorID)

	page, err = d.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	require.NoError(t, d.Delete(ctx, "a"))
	assert.ErrorIs(t, d.Delete(ctx, "a"), executor.ErrNotFound)
}

func TestExecutorDirectoryCreateKeepsExistingRecord(t *testing.T) {
	ctx := context.Background()
	d := NewExecutorDirectory()
	require.NoError(t, d.Create(ctx, newExec("e1", false, "x", 1, 3)))
	res, err := d.TrySetLocked(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, executor.ClaimSuccess, res)

	err = d.Create(ctx, newExec("e1", false, "y", 1, 1))
	assert.ErrorIs(t, err, executor.ErrAlreadyExists)

	got, err := d.FindByID(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.Locked)
	assert.Equal(t, "x", got.ServiceDefinitions[0].ServiceDefinition)
}

func TestExecutorDirectoryConcurrentCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	d := NewExecutorDirectory()

	var created, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.Create(ctx, newExec("e1", false, "x", 1, 1))
			switch {
			case err == nil:
				atomic.AddInt32(&created, 1)
			case errors.Is(err, executor.ErrAlreadyExists):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(31), conflicts)
}

func TestClaimRegistrySingleWinner(t *testing.T) {
	ctx := context.Background()
	r := NewClaimRegistry()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.TryClaim(ctx, "e1")
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	claimed, err := r.IsClaimed(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 1, r.Count())

	require.NoError(t, r.Release(ctx, "e1"))
	claimed, err = r.IsClaimed(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, claimed)

	ok, err := r.TryClaim(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)
}
