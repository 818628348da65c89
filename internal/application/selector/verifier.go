package selector

import (
	"context"
	"fmt"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

// DependencyVerifier confirms a candidate's declared dependencies are satisfiable.
type DependencyVerifier interface {
	Verify(ctx context.Context, exec *executor.Executor, info *executor.ServiceInfo) error
}

// DirectoryDependencyVerifier requires at least one registered executor,
// other than the candidate itself, for every declared dependency.
type DirectoryDependencyVerifier struct {
	directory executor.Directory
}

func NewDirectoryDependencyVerifier(directory executor.Directory) *DirectoryDependencyVerifier {
	return &DirectoryDependencyVerifier{directory: directory}
}

func (v *DirectoryDependencyVerifier) Verify(ctx context.Context, exec *executor.Executor, info *executor.ServiceInfo) error {
	if info == nil {
		return nil
	}
	for _, dep := range info.Dependencies {
		b, err := executor.Query{
			ServiceDefinition: dep.ServiceDefinition,
			MinVersion:        dep.MinVersion,
			MaxVersion:        dep.MaxVersion,
		}.Normalize()
		if err != nil {
			return fmt.Errorf("dependency %q: %w", dep.ServiceDefinition, err)
		}
		providers, err := v.directory.FindByCapability(ctx, b.ServiceDefinition, b.Min, b.Max)
		if err != nil {
			return fmt.Errorf("dependency %q: %w", b.ServiceDefinition, err)
		}
		if !hasOtherProvider(providers, exec.ExecutorID) {
			return fmt.Errorf("dependency %q [%d,%d] has no provider", b.ServiceDefinition, b.Min, b.Max)
		}
	}
	return nil
}

func hasOtherProvider(providers []*executor.Executor, self string) bool {
	for _, p := range providers {
		if p != nil && p.ExecutorID != self {
			return true
		}
	}
	return false
}
