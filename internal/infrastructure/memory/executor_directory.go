package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

// ExecutorDirectory implements executor.Directory in process memory.
type ExecutorDirectory struct {
	mu        sync.RWMutex
	executors map[string]*executor.Executor
}

func NewExecutorDirectory() *ExecutorDirectory {
	return &ExecutorDirectory{
		executors: make(map[string]*executor.Executor),
	}
}

// Create fails with executor.ErrAlreadyExists when the id is taken.
func (d *ExecutorDirectory) Create(_ context.Context, exec *executor.Executor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.executors[exec.ExecutorID]; ok {
		return fmt.Errorf("%w: %s", executor.ErrAlreadyExists, exec.ExecutorID)
	}
	d.executors[exec.ExecutorID] = exec.Clone()
	return nil
}

func (d *ExecutorDirectory) FindByCapability(_ context.Context, serviceDefinition string, minVersion, maxVersion int) ([]*executor.Executor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*executor.Executor
	for _, e := range d.executors {
		if e.Serves(strings.TrimSpace(serviceDefinition), minVersion, maxVersion) {
			out = append(out, e.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (d *ExecutorDirectory) FindByID(_ context.Context, executorID string) (*executor.Executor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.executors[executorID]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

func (d *ExecutorDirectory) TrySetLocked(_ context.Context, executorID string) (executor.ClaimResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.executors[executorID]
	if !ok {
		return executor.ClaimAbsent, nil
	}
	if e.Locked {
		return executor.ClaimAlreadyLocked, nil
	}
	e.Locked = true
	return executor.ClaimSuccess, nil
}

func (d *ExecutorDirectory) Unlock(_ context.Context, executorID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.executors[executorID]
	if !ok {
		return executor.ErrNotFound
	}
	e.Locked = false
	return nil
}

func (d *ExecutorDirectory) List(_ context.Context, limit, offset int) ([]*executor.Executor, error) {
	d.mu.RLock()
	all := make([]*executor.Executor, 0, len(d.executors))
	for _, e := range d.executors {
		all = append(all, e.Clone())
	}
	d.mu.RUnlock()

	sortByID(all)
	if offset >= len(all) {
		return []*executor.Executor{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (d *ExecutorDirectory) Delete(_ context.Context, executorID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.executors[executorID]; !ok {
		return executor.ErrNotFound
	}
	delete(d.executors, executorID)
	return nil
}

func sortByID(execs []*executor.Executor) {
	sort.Slice(execs, func(i, j int) bool { return execs[i].ExecutorID < execs[j].ExecutorID })
}
