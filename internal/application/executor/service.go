package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

// Releaser clears the lock bit of a selected executor.
type Releaser interface {
	Release(ctx context.Context, executorID string) error
}

// Service handles executor registration and lookup.
type Service struct {
	directory executor.Directory
	releaser  Releaser
	logger    zerolog.Logger
}

func NewService(directory executor.Directory, releaser Releaser, logger zerolog.Logger) *Service {
	return &Service{
		directory: directory,
		releaser:  releaser,
		logger:    logger.With().Str("service", "executor").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, exec *executor.Executor) error {
	if err := validate(exec); err != nil {
		return err
	}
	if exec.ExecutorID == "" {
		exec.ExecutorID = uuid.NewString()
	}
	exec.Locked = false
	now := time.Now().UTC()
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = now
	}
	exec.UpdatedAt = now
	// The directory rejects a taken id atomically with executor.ErrAlreadyExists.
	if err := s.directory.Create(ctx, exec); err != nil {
		return err
	}
	s.logger.Info().
		Str("executor_id", exec.ExecutorID).
		Int("service_definitions", len(exec.ServiceDefinitions)).
		Msg("executor registered")
	return nil
}

func validate(exec *executor.Executor) error {
	if exec == nil {
		return fmt.Errorf("%w: executor is required", executor.ErrInvalidArgument)
	}
	exec.Name = strings.TrimSpace(exec.Name)
	exec.Address = strings.TrimSpace(exec.Address)
	exec.ExecutorID = strings.TrimSpace(exec.ExecutorID)
	if exec.Name == "" {
		return fmt.Errorf("%w: name is required", executor.ErrInvalidArgument)
	}
	if exec.Address == "" {
		return fmt.Errorf("%w: address is required", executor.ErrInvalidArgument)
	}
	if exec.Port < 1 || exec.Port > 65535 {
		return fmt.Errorf("%w: port out of range: %d", executor.ErrInvalidArgument, exec.Port)
	}
	if len(exec.ServiceDefinitions) == 0 {
		return fmt.Errorf("%w: at least one service definition is required", executor.ErrInvalidArgument)
	}
	for i := range exec.ServiceDefinitions {
		d := &exec.ServiceDefinitions[i]
		d.ServiceDefinition = strings.TrimSpace(d.ServiceDefinition)
		if d.ServiceDefinition == "" {
			return fmt.Errorf("%w: serviceDefinition is required", executor.ErrInvalidArgument)
		}
		if d.MinVersion < 0 || d.MinVersion > d.MaxVersion {
			return fmt.Errorf("%w: invalid version range %d..%d for %s",
				executor.ErrInvalidArgument, d.MinVersion, d.MaxVersion, d.ServiceDefinition)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, executorID string) (*executor.Executor, error) {
	exec, err := s.directory.FindByID(ctx, executorID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: %s", executor.ErrNotFound, executorID)
	}
	return exec, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*executor.Executor, error) {
	return s.directory.List(ctx, limit, offset)
}

// Delete deregisters an executor. A locked executor is still in use and
// must be released first.
func (s *Service) Delete(ctx context.Context, executorID string) error {
	exec, err := s.Get(ctx, executorID)
	if err != nil {
		return err
	}
	if exec.Locked {
		return fmt.Errorf("%w: %s", executor.ErrLocked, executorID)
	}
	if err := s.directory.Delete(ctx, executorID); err != nil {
		return err
	}
	s.logger.Info().Str("executor_id", executorID).Msg("executor deregistered")
	return nil
}

func (s *Service) Release(ctx context.Context, executorID string) error {
	return s.releaser.Release(ctx, executorID)
}
