package executor

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Directory,Prober

import (
	"context"
)

// Directory is the authoritative store of executor records.
type Directory interface {
	// Selection
	FindByCapability(ctx context.Context, serviceDefinition string, minVersion, maxVersion int) ([]*Executor, error)
	// FindByID returns nil, nil when the executor does not exist.
	FindByID(ctx context.Context, executorID string) (*Executor, error)
	TrySetLocked(ctx context.Context, executorID string) (ClaimResult, error)
	Unlock(ctx context.Context, executorID string) error

	// Registration
	Create(ctx context.Context, exec *Executor) error
	List(ctx context.Context, limit, offset int) ([]*Executor, error)
	Delete(ctx context.Context, executorID string) error
}

// Prober asks a remote executor whether it still serves a capability.
type Prober interface {
	Probe(ctx context.Context, address string, port int, basePath, serviceDefinition string, minVersion, maxVersion int) (*ServiceInfo, error)
}
