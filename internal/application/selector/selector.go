package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/execution-hub/choreographer/internal/domain/executor"
	"github.com/execution-hub/choreographer/internal/infrastructure/metrics"
)

const (
	defaultProbeTimeout     = 5 * time.Second
	defaultProbeConcurrency = 8
	// cleanupTimeout bounds claim release and lock rollback, which run
	// detached from the caller's context.
	cleanupTimeout = 5 * time.Second
)

// ClaimRegistry guards the window between re-verifying a candidate and
// flipping its lock bit in the directory. TryClaim must be atomic per id.
type ClaimRegistry interface {
	TryClaim(ctx context.Context, executorID string) (bool, error)
	Release(ctx context.Context, executorID string) error
	IsClaimed(ctx context.Context, executorID string) (bool, error)
}

// VerifyPhase decides when dependency verification runs relative to the lock commit.
type VerifyPhase string

const (
	VerifyNone        VerifyPhase = "NONE"
	VerifyBeforeClaim VerifyPhase = "BEFORE_CLAIM"
	VerifyAfterClaim  VerifyPhase = "AFTER_CLAIM"
)

// ParseVerifyPhase maps a config value to a phase. Empty means VerifyNone.
func ParseVerifyPhase(s string) (VerifyPhase, error) {
	switch VerifyPhase(s) {
	case "", VerifyNone:
		return VerifyNone, nil
	case VerifyBeforeClaim, VerifyAfterClaim:
		return VerifyPhase(s), nil
	default:
		return "", fmt.Errorf("unknown verify phase: %s", s)
	}
}

// Options tunes a Selector.
type Options struct {
	ProbeTimeout     time.Duration
	ProbeConcurrency int
	Verifier         DependencyVerifier
	VerifyPhase      VerifyPhase
	// Events receives committed lock transitions. Optional.
	Events executor.EventPublisher
}

func (o Options) normalized() Options {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = defaultProbeTimeout
	}
	if o.ProbeConcurrency <= 0 {
		o.ProbeConcurrency = defaultProbeConcurrency
	}
	if o.VerifyPhase == "" || o.Verifier == nil {
		o.VerifyPhase = VerifyNone
	}
	return o
}

// Selector picks one executor for a step and commits its lock bit.
type Selector struct {
	directory executor.Directory
	prober    executor.Prober
	strategy  Strategy
	claims    ClaimRegistry
	metrics   *metrics.Collector
	opts      Options
	logger    zerolog.Logger
}

// NewSelector creates a new selector.
func NewSelector(
	directory executor.Directory,
	prober executor.Prober,
	strategy Strategy,
	claims ClaimRegistry,
	collector *metrics.Collector,
	opts Options,
	logger zerolog.Logger,
) *Selector {
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}
	return &Selector{
		directory: directory,
		prober:    prober,
		strategy:  strategy,
		claims:    claims,
		metrics:   collector,
		opts:      opts.normalized(),
		logger:    logger.With().Str("service", "selector").Str("strategy", strategy.Name()).Logger(),
	}
}

// Select returns a locked executor serving q, or nil, nil when no candidate is available.
// Exclusions are executor ids to skip for this attempt only.
func (s *Selector) Select(ctx context.Context, q executor.Query, exclusions []string) (*executor.Executor, error) {
	start := time.Now()
	bounds, err := q.Normalize()
	if err != nil {
		s.metrics.RecordSelection(metrics.OutcomeInvalidArgument, time.Since(start))
		return nil, err
	}
	logger := s.logger.With().
		Str("service_definition", bounds.ServiceDefinition).
		Int("min_version", bounds.Min).
		Int("max_version", bounds.Max).
		Logger()
	logger.Debug().Int("exclusions", len(exclusions)).Msg("select started")

	potentials, err := s.directory.FindByCapability(ctx, bounds.ServiceDefinition, bounds.Min, bounds.Max)
	if err != nil {
		logger.Warn().Err(err).Msg("directory query failed")
		s.metrics.RecordSelection(metrics.OutcomeUpstreamUnavailable, time.Since(start))
		return nil, fmt.Errorf("%w: %v", executor.ErrUpstreamUnavailable, err)
	}

	potentials = s.filterOutLockedAndExcluded(ctx, potentials, exclusions)
	if len(potentials) == 0 {
		logger.Debug().Msg("no unlocked candidates")
		s.metrics.RecordSelection(metrics.OutcomeNoneAvailable, time.Since(start))
		return nil, nil
	}

	candidates := s.collectServiceInfos(ctx, potentials, bounds)
	ranked := s.prioritize(ctx, candidates)
	chosen, err := s.claimFirstAvailable(ctx, ranked)
	if err != nil {
		logger.Warn().Err(err).Msg("claim registry unavailable")
		s.metrics.RecordSelection(metrics.OutcomeUpstreamUnavailable, time.Since(start))
		return nil, err
	}
	if chosen == nil {
		logger.Info().Int("ranked", len(ranked)).Msg("no executor available")
		s.metrics.RecordSelection(metrics.OutcomeNoneAvailable, time.Since(start))
		return nil, nil
	}

	logger.Info().Str("executor_id", chosen.ExecutorID).Msg("executor selected")
	s.publish(executor.EventLocked, chosen.ExecutorID, bounds.ServiceDefinition)
	s.metrics.RecordSelection(metrics.OutcomeSelected, time.Since(start))
	return chosen, nil
}

// Release clears the lock bit of a previously selected executor.
func (s *Selector) Release(ctx context.Context, executorID string) error {
	if executorID == "" {
		return fmt.Errorf("%w: executorId is empty", executor.ErrInvalidArgument)
	}
	if err := s.directory.Unlock(ctx, executorID); err != nil {
		return err
	}
	s.logger.Info().Str("executor_id", executorID).Msg("executor released")
	s.publish(executor.EventReleased, executorID, "")
	return nil
}

func (s *Selector) publish(t executor.LockEventType, executorID, serviceDefinition string) {
	if s.opts.Events == nil {
		return
	}
	s.opts.Events.Publish(executor.LockEvent{
		Type:              t,
		ExecutorID:        executorID,
		ServiceDefinition: serviceDefinition,
		At:                time.Now().UTC(),
	})
}

func (s *Selector) filterOutLockedAndExcluded(ctx context.Context, potentials []*executor.Executor, exclusions []string) []*executor.Executor {
	excluded := make(map[string]struct{}, len(exclusions))
	for _, id := range exclusions {
		excluded[id] = struct{}{}
	}

	filtered := make([]*executor.Executor, 0, len(potentials))
	seen := make(map[string]struct{}, len(potentials))
	for _, e := range potentials {
		if e == nil || e.Locked {
			continue
		}
		if _, ok := excluded[e.ExecutorID]; ok {
			continue
		}
		if _, ok := seen[e.ExecutorID]; ok {
			continue
		}
		claimed, err := s.claims.IsClaimed(ctx, e.ExecutorID)
		if err != nil {
			s.logger.Debug().Err(err).Str("executor_id", e.ExecutorID).Msg("claim lookup failed; skipping candidate")
			continue
		}
		if claimed {
			continue
		}
		seen[e.ExecutorID] = struct{}{}
		filtered = append(filtered, e)
	}
	return filtered
}

// collectServiceInfos probes every candidate concurrently. Failed probes drop
// only their own candidate.
func (s *Selector) collectServiceInfos(ctx context.Context, potentials []*executor.Executor, b executor.Bounds) []Candidate {
	infos := make([]*executor.ServiceInfo, len(potentials))

	var g errgroup.Group
	g.SetLimit(s.opts.ProbeConcurrency)
	for i, e := range potentials {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
			defer cancel()

			start := time.Now()
			info, err := s.prober.Probe(probeCtx, e.Address, e.Port, e.BasePath, b.ServiceDefinition, b.Min, b.Max)
			if err == nil && info == nil {
				err = fmt.Errorf("empty service info")
			}
			s.metrics.RecordProbe(time.Since(start), err)
			if err != nil {
				s.logger.Debug().Err(err).Str("executor_id", e.ExecutorID).Msg("probe failed")
				return fmt.Errorf("probe %s: %w", e.ExecutorID, err)
			}
			infos[i] = info
			return nil
		})
	}
	// Wait reports the first failed probe. The plain Group does not cancel
	// the rest, so every candidate still gets its answer.
	probeErr := g.Wait()

	candidates := make([]Candidate, 0, len(potentials))
	for i, e := range potentials {
		if infos[i] != nil {
			candidates = append(candidates, Candidate{Executor: e, Info: infos[i]})
		}
	}
	if probeErr != nil {
		s.logger.Debug().
			Err(probeErr).
			Int("failed", len(potentials)-len(candidates)).
			Int("answered", len(candidates)).
			Msg("probe round finished with failures")
	}
	return candidates
}

// prioritize keeps the strategy's order but ignores executors it did not receive.
func (s *Selector) prioritize(ctx context.Context, candidates []Candidate) []Candidate {
	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.Executor.ExecutorID] = c
	}

	ranked := s.strategy.Rank(ctx, candidates)
	out := make([]Candidate, 0, len(ranked))
	for _, e := range ranked {
		if e == nil {
			continue
		}
		c, ok := byID[e.ExecutorID]
		if !ok {
			continue
		}
		delete(byID, e.ExecutorID)
		out = append(out, c)
	}
	return out
}

// claimFirstAvailable walks the ranking and locks the first candidate that is
// still present and unlocked in the directory. When nothing was locked and the
// claim registry failed along the way, the failure is returned as
// ErrUpstreamUnavailable instead of reporting no candidate.
func (s *Selector) claimFirstAvailable(ctx context.Context, ranked []Candidate) (*executor.Executor, error) {
	var claimErr error
	for _, c := range ranked {
		e, err := s.tryCommit(ctx, c)
		if e != nil {
			return e, nil
		}
		if err != nil {
			claimErr = err
		}
	}
	if claimErr != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: claim registry: %v", executor.ErrUpstreamUnavailable, claimErr)
	}
	return nil, nil
}

// tryCommit returns an error only when the claim registry itself failed.
func (s *Selector) tryCommit(ctx context.Context, c Candidate) (*executor.Executor, error) {
	id := c.Executor.ExecutorID
	logger := s.logger.With().Str("executor_id", id).Logger()

	if s.opts.VerifyPhase == VerifyBeforeClaim && !s.verify(ctx, c) {
		return nil, nil
	}

	ok, err := s.claims.TryClaim(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("claim failed")
		return nil, err
	}
	if !ok {
		s.metrics.RecordClaimConflict()
		return nil, nil
	}
	defer s.releaseClaim(ctx, id, logger)

	fresh, err := s.directory.FindByID(ctx, id)
	if err != nil {
		logger.Debug().Err(err).Msg("refresh failed; skipping candidate")
		return nil, nil
	}
	if fresh == nil {
		logger.Debug().Msg("executor vanished; skipping candidate")
		return nil, nil
	}
	if fresh.Locked {
		s.metrics.RecordClaimConflict()
		return nil, nil
	}

	res, err := s.directory.TrySetLocked(ctx, id)
	if err != nil {
		logger.Debug().Err(err).Msg("lock commit failed; skipping candidate")
		return nil, nil
	}
	if res != executor.ClaimSuccess {
		if res == executor.ClaimAlreadyLocked {
			s.metrics.RecordClaimConflict()
		}
		logger.Debug().Str("result", res.String()).Msg("lock commit refused")
		return nil, nil
	}

	if s.opts.VerifyPhase == VerifyAfterClaim && !s.verify(ctx, c) {
		rollbackCtx, cancel := detached(ctx)
		defer cancel()
		if err := s.directory.Unlock(rollbackCtx, id); err != nil {
			logger.Warn().Err(err).Msg("failed to roll back lock")
		}
		return nil, nil
	}

	fresh.Locked = true
	return fresh, nil
}

// releaseClaim runs detached from ctx so an expired request still drops its claim.
func (s *Selector) releaseClaim(ctx context.Context, id string, logger zerolog.Logger) {
	releaseCtx, cancel := detached(ctx)
	defer cancel()
	if err := s.claims.Release(releaseCtx, id); err != nil {
		logger.Warn().Err(err).Msg("failed to release claim")
	}
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func (s *Selector) verify(ctx context.Context, c Candidate) bool {
	if err := s.opts.Verifier.Verify(ctx, c.Executor, c.Info); err != nil {
		s.metrics.RecordVerifyFailure()
		s.logger.Debug().Err(err).Str("executor_id", c.Executor.ExecutorID).Msg("dependency verification failed")
		return false
	}
	return true
}
