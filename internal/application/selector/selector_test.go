package selector

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/execution-hub/choreographer/internal/domain/executor"
	"github.com/execution-hub/choreographer/internal/domain/executor/mocks"
	"github.com/execution-hub/choreographer/internal/infrastructure/memory"
	"github.com/execution-hub/choreographer/internal/infrastructure/metrics"
)

// fakeProber answers by executor id, taken from the base path.
type fakeProber struct {
	mu     sync.Mutex
	calls  []string
	failed map[string]bool
	infos  map[string]*executor.ServiceInfo
	block  bool
}

func newFakeProber() *fakeProber {
	return &fakeProber{failed: map[string]bool{}, infos: map[string]*executor.ServiceInfo{}}
}

func (p *fakeProber) Probe(ctx context.Context, _ string, _ int, basePath, serviceDefinition string, minVersion, maxVersion int) (*executor.ServiceInfo, error) {
	id := strings.TrimPrefix(basePath, "/")
	p.mu.Lock()
	p.calls = append(p.calls, id)
	failed := p.failed[id]
	info := p.infos[id]
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failed {
		return nil, errors.New("connection refused")
	}
	if info != nil {
		return info, nil
	}
	return &executor.ServiceInfo{ServiceDefinition: serviceDefinition, MinVersion: minVersion, MaxVersion: maxVersion}, nil
}

func (p *fakeProber) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// orderStrategy ranks by a fixed id order and can run a hook before returning.
type orderStrategy struct {
	order  []string
	hook   func()
	called int32
}

func (s *orderStrategy) Name() string { return "order" }

func (s *orderStrategy) Rank(_ context.Context, candidates []Candidate) []*executor.Executor {
	atomic.AddInt32(&s.called, 1)
	byID := map[string]*executor.Executor{}
	for _, c := range candidates {
		byID[c.Executor.ExecutorID] = c.Executor
	}
	var out []*executor.Executor
	for _, id := range s.order {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	if s.hook != nil {
		s.hook()
	}
	return out
}

func newExec(id string, locked bool) *executor.Executor {
	return &executor.Executor{
		ExecutorID: id,
		Name:       id,
		Address:    "10.0.0.1",
		Port:       9000,
		BasePath:   "/" + id,
		Locked:     locked,
		ServiceDefinitions: []executor.ServiceDefinition{
			{ServiceDefinition: "X", MinVersion: 1, MaxVersion: 3},
		},
	}
}

func seed(t *testing.T, execs ...*executor.Executor) *memory.ExecutorDirectory {
	t.Helper()
	d := memory.NewExecutorDirectory()
	for _, e := range execs {
		require.NoError(t, d.Create(context.Background(), e))
	}
	return d
}

func newTestSelector(dir executor.Directory, prober executor.Prober, strategy Strategy, opts Options) *Selector {
	return NewSelector(dir, prober, strategy, memory.NewClaimRegistry(), metrics.NewCollector(prometheus.NewRegistry()), opts, zerolog.Nop())
}

func intPtr(v int) *int { return &v }

func query(def string) executor.Query {
	return executor.Query{ServiceDefinition: def, MinVersion: intPtr(1), MaxVersion: intPtr(3)}
}

func TestSelect_InvalidArgument(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := mocks.NewMockDirectory(ctrl)
	prober := mocks.NewMockProber(ctrl)
	s := newTestSelector(dir, prober, RandomStrategy{}, Options{})

	t.Run("empty service definition", func(t *testing.T) {
		got, err := s.Select(context.Background(), executor.Query{}, nil)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, executor.ErrInvalidArgument)
	})

	t.Run("inverted bounds", func(t *testing.T) {
		q := executor.Query{ServiceDefinition: "X", MinVersion: intPtr(3), MaxVersion: intPtr(1)}
		got, err := s.Select(context.Background(), q, nil)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, executor.ErrInvalidArgument)
	})
}

func TestSelect_DefaultBoundsReachDirectory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := mocks.NewMockDirectory(ctrl)
	dir.EXPECT().
		FindByCapability(gomock.Any(), "X", executor.LowestVersion, executor.HighestVersion).
		Return(nil, nil)

	s := newTestSelector(dir, mocks.NewMockProber(ctrl), RandomStrategy{}, Options{})
	got, err := s.Select(context.Background(), executor.Query{ServiceDefinition: "X"}, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSelect_UpstreamUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := mocks.NewMockDirectory(ctrl)
	dir.EXPECT().
		FindByCapability(gomock.Any(), "X", 1, 3).
		Return(nil, errors.New("dial tcp: connection refused"))

	s := newTestSelector(dir, mocks.NewMockProber(ctrl), RandomStrategy{}, Options{})
	got, err := s.Select(context.Background(), query("X"), nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, executor.ErrUpstreamUnavailable)
}

func TestSelect_NoCandidatesSkipsProberAndStrategy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := mocks.NewMockDirectory(ctrl)
	dir.EXPECT().FindByCapability(gomock.Any(), "X", 1, 3).Return([]*executor.Executor{}, nil)

	strategy := &orderStrategy{}
	s := newTestSelector(dir, mocks.NewMockProber(ctrl), strategy, Options{})
	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&strategy.called))
}

func TestSelect_ExcludedSoleCandidate(t *testing.T) {
	dir := seed(t, newExec("E1", false))
	prober := newFakeProber()
	s := newTestSelector(dir, prober, &orderStrategy{order: []string{"E1"}}, Options{})

	got, err := s.Select(context.Background(), query("X"), []string{"E1"})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, prober.Calls())
}

func TestSelect_LockedAtFilterTimeNeverReturned(t *testing.T) {
	dir := seed(t, newExec("E1", false), newExec("E2", true))
	prober := newFakeProber()
	s := newTestSelector(dir, prober, &orderStrategy{order: []string{"E2", "E1"}}, Options{})

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "E1", got.ExecutorID)
	assert.True(t, got.Locked)
	assert.Equal(t, []string{"E1"}, prober.Calls())

	fresh, err := dir.FindByID(context.Background(), "E1")
	require.NoError(t, err)
	assert.True(t, fresh.Locked, "winner must be committed in the directory")
}

func TestSelect_ConcurrentLockBetweenRankAndVerify(t *testing.T) {
	dir := seed(t, newExec("A", false), newExec("B", false))
	strategy := &orderStrategy{order: []string{"A", "B"}}
	strategy.hook = func() {
		res, err := dir.TrySetLocked(context.Background(), "A")
		require.NoError(t, err)
		require.Equal(t, executor.ClaimSuccess, res)
	}
	s := newTestSelector(dir, newFakeProber(), strategy, Options{})

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.ExecutorID)
}

func TestSelect_CandidateVanishedBeforeVerify(t *testing.T) {
	dir := seed(t, newExec("A", false), newExec("B", false))
	strategy := &orderStrategy{order: []string{"A", "B"}}
	strategy.hook = func() {
		require.NoError(t, dir.Delete(context.Background(), "A"))
	}
	s := newTestSelector(dir, newFakeProber(), strategy, Options{})

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.ExecutorID)
}

func TestSelect_AllProbesFail(t *testing.T) {
	dir := seed(t, newExec("E1", false), newExec("E2", false))
	prober := newFakeProber()
	prober.failed["E1"] = true
	prober.failed["E2"] = true
	strategy := &orderStrategy{order: []string{"E1", "E2"}}
	s := newTestSelector(dir, prober, strategy, Options{})

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ElementsMatch(t, []string{"E1", "E2"}, prober.Calls())
}

func TestSelect_PartialProbeFailure(t *testing.T) {
	dir := seed(t, newExec("E1", false), newExec("E2", false))
	prober := newFakeProber()
	prober.failed["E1"] = true
	s := newTestSelector(dir, prober, &orderStrategy{order: []string{"E1", "E2"}}, Options{})

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "E2", got.ExecutorID)
}

func TestSelect_ProbeTimeoutDropsCandidate(t *testing.T) {
	dir := seed(t, newExec("E1", false))
	prober := newFakeProber()
	prober.block = true
	s := newTestSelector(dir, prober, &orderStrategy{order: []string{"E1"}}, Options{ProbeTimeout: 20 * time.Millisecond})

	start := time.Now()
	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSelect_StrategyMayDropAndInvent(t *testing.T) {
	dir := seed(t, newExec("E1", false), newExec("E2", false))
	// "ghost" was never probed and E1 is dropped by the strategy.
	s := newTestSelector(dir, newFakeProber(), &inventingStrategy{}, Options{})

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "E2", got.ExecutorID)
}

type inventingStrategy struct{}

func (inventingStrategy) Name() string { return "inventing" }

func (inventingStrategy) Rank(_ context.Context, candidates []Candidate) []*executor.Executor {
	var e2 *executor.Executor
	for _, c := range candidates {
		if c.Executor.ExecutorID == "E2" {
			e2 = c.Executor
		}
	}
	return []*executor.Executor{nil, {ExecutorID: "ghost"}, e2, e2}
}

func TestSelect_RefreshFailureSkipsCandidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a, b := newExec("A", false), newExec("B", false)
	dir := mocks.NewMockDirectory(ctrl)
	dir.EXPECT().FindByCapability(gomock.Any(), "X", 1, 3).Return([]*executor.Executor{a, b}, nil)
	dir.EXPECT().FindByID(gomock.Any(), "A").Return(nil, errors.New("timeout"))
	dir.EXPECT().FindByID(gomock.Any(), "B").Return(b.Clone(), nil)
	dir.EXPECT().TrySetLocked(gomock.Any(), "B").Return(executor.ClaimSuccess, nil)

	s := newTestSelector(dir, newFakeProber(), &orderStrategy{order: []string{"A", "B"}}, Options{})
	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.ExecutorID)
}

func TestSelect_RefreshFailsForEveryCandidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a, b := newExec("A", false), newExec("B", false)
	dir := mocks.NewMockDirectory(ctrl)
	dir.EXPECT().FindByCapability(gomock.Any(), "X", 1, 3).Return([]*executor.Executor{a, b}, nil)
	dir.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout")).Times(2)

	s := newTestSelector(dir, newFakeProber(), &orderStrategy{order: []string{"A", "B"}}, Options{})
	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSelect_LockCommitRefused(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a, b := newExec("A", false), newExec("B", false)
	dir := mocks.NewMockDirectory(ctrl)
	dir.EXPECT().FindByCapability(gomock.Any(), "X", 1, 3).Return([]*executor.Executor{a, b}, nil)
	dir.EXPECT().FindByID(gomock.Any(), "A").Return(a.Clone(), nil)
	dir.EXPECT().TrySetLocked(gomock.Any(), "A").Return(executor.ClaimAlreadyLocked, nil)
	dir.EXPECT().FindByID(gomock.Any(), "B").Return(b.Clone(), nil)
	dir.EXPECT().TrySetLocked(gomock.Any(), "B").Return(executor.ClaimSuccess, nil)

	s := newTestSelector(dir, newFakeProber(), &orderStrategy{order: []string{"A", "B"}}, Options{})
	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.ExecutorID)
}

func TestSelect_InFlightClaimIsFiltered(t *testing.T) {
	dir := seed(t, newExec("E1", false))
	claims := memory.NewClaimRegistry()
	ok, err := claims.TryClaim(context.Background(), "E1")
	require.NoError(t, err)
	require.True(t, ok)

	prober := newFakeProber()
	s := NewSelector(dir, prober, RandomStrategy{}, claims, nil, Options{}, zerolog.Nop())
	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, prober.Calls())
}

func TestSelect_ClaimReleasedAfterCommit(t *testing.T) {
	dir := seed(t, newExec("E1", false))
	claims := memory.NewClaimRegistry()
	s := NewSelector(dir, newFakeProber(), RandomStrategy{}, claims, nil, Options{}, zerolog.Nop())

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, claims.Count())
}

func TestSelect_ConcurrentSingleExecutorPool(t *testing.T) {
	dir := seed(t, newExec("E1", false))
	s := newTestSelector(dir, newFakeProber(), RandomStrategy{}, Options{})

	const n = 32
	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, err := s.Select(context.Background(), query("X"), nil)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if got != nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestSelect_ConcurrentDistinctWinners(t *testing.T) {
	const pool = 5
	var execs []*executor.Executor
	for _, id := range []string{"E1", "E2", "E3", "E4", "E5"} {
		execs = append(execs, newExec(id, false))
	}
	dir := seed(t, execs...)
	s := newTestSelector(dir, newFakeProber(), RandomStrategy{}, Options{})

	var mu sync.Mutex
	winners := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Select(context.Background(), query("X"), nil)
			if err != nil || got == nil {
				return
			}
			mu.Lock()
			winners[got.ExecutorID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, len(winners), pool)
	for id, count := range winners {
		assert.Equal(t, 1, count, "executor %s handed out twice", id)
	}
}

func TestSelect_DependencyVerification(t *testing.T) {
	dep := executor.Dependency{ServiceDefinition: "Y"}
	withDeps := func(p *fakeProber) {
		p.infos["A"] = &executor.ServiceInfo{ServiceDefinition: "X", MinVersion: 1, MaxVersion: 3, Dependencies: []executor.Dependency{dep}}
	}

	t.Run("before claim skips unsatisfiable candidate", func(t *testing.T) {
		dir := seed(t, newExec("A", false), newExec("B", false))
		prober := newFakeProber()
		withDeps(prober)
		s := newTestSelector(dir, prober, &orderStrategy{order: []string{"A", "B"}}, Options{
			Verifier:    NewDirectoryDependencyVerifier(dir),
			VerifyPhase: VerifyBeforeClaim,
		})

		got, err := s.Select(context.Background(), query("X"), nil)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "B", got.ExecutorID)

		a, err := dir.FindByID(context.Background(), "A")
		require.NoError(t, err)
		assert.False(t, a.Locked)
	})

	t.Run("after claim rolls back lock", func(t *testing.T) {
		dir := seed(t, newExec("A", false), newExec("B", false))
		prober := newFakeProber()
		withDeps(prober)
		s := newTestSelector(dir, prober, &orderStrategy{order: []string{"A", "B"}}, Options{
			Verifier:    NewDirectoryDependencyVerifier(dir),
			VerifyPhase: VerifyAfterClaim,
		})

		got, err := s.Select(context.Background(), query("X"), nil)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "B", got.ExecutorID)

		a, err := dir.FindByID(context.Background(), "A")
		require.NoError(t, err)
		assert.False(t, a.Locked, "failed verification must roll back the lock")
	})

	t.Run("satisfied dependency keeps preferred candidate", func(t *testing.T) {
		provider := newExec("P", false)
		provider.ServiceDefinitions = []executor.ServiceDefinition{{ServiceDefinition: "Y", MinVersion: 0, MaxVersion: 10}}
		dir := seed(t, newExec("A", false), newExec("B", false), provider)
		prober := newFakeProber()
		withDeps(prober)
		s := newTestSelector(dir, prober, &orderStrategy{order: []string{"A", "B"}}, Options{
			Verifier:    NewDirectoryDependencyVerifier(dir),
			VerifyPhase: VerifyAfterClaim,
		})

		got, err := s.Select(context.Background(), query("X"), nil)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "A", got.ExecutorID)
	})
}

func TestRelease(t *testing.T) {
	dir := seed(t, newExec("E1", false))
	s := newTestSelector(dir, newFakeProber(), RandomStrategy{}, Options{})

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)

	again, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, s.Release(context.Background(), "E1"))
	again, err = s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, again)

	assert.ErrorIs(t, s.Release(context.Background(), ""), executor.ErrInvalidArgument)
	assert.ErrorIs(t, s.Release(context.Background(), "missing"), executor.ErrNotFound)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []executor.LockEvent
}

func (p *recordingPublisher) Publish(ev executor.LockEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func TestSelect_PublishesLockTransitions(t *testing.T) {
	dir := seed(t, newExec("E1", false))
	pub := &recordingPublisher{}
	s := newTestSelector(dir, newFakeProber(), RandomStrategy{}, Options{Events: pub})

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	none, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.Nil(t, none)
	require.NoError(t, s.Release(context.Background(), "E1"))

	require.Len(t, pub.events, 2)
	assert.Equal(t, executor.EventLocked, pub.events[0].Type)
	assert.Equal(t, "E1", pub.events[0].ExecutorID)
	assert.Equal(t, "X", pub.events[0].ServiceDefinition)
	assert.Equal(t, executor.EventReleased, pub.events[1].Type)
	assert.False(t, pub.events[1].At.IsZero())
}

func TestParseVerifyPhase(t *testing.T) {
	p, err := ParseVerifyPhase("")
	require.NoError(t, err)
	assert.Equal(t, VerifyNone, p)

	p, err = ParseVerifyPhase("AFTER_CLAIM")
	require.NoError(t, err)
	assert.Equal(t, VerifyAfterClaim, p)

	_, err = ParseVerifyPhase("sometimes")
	assert.Error(t, err)
}

// deadlineClaims refuses to release once the context is done, like a
// replicated registry whose apply honors the caller's deadline.
type deadlineClaims struct {
	*memory.ClaimRegistry
	fail map[string]bool
}

func newDeadlineClaims() *deadlineClaims {
	return &deadlineClaims{ClaimRegistry: memory.NewClaimRegistry(), fail: map[string]bool{}}
}

func (c *deadlineClaims) TryClaim(ctx context.Context, executorID string) (bool, error) {
	if c.fail[executorID] {
		return false, errors.New("node is not the leader")
	}
	return c.ClaimRegistry.TryClaim(ctx, executorID)
}

func (c *deadlineClaims) Release(ctx context.Context, executorID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.ClaimRegistry.Release(ctx, executorID)
}

// slowLockDirectory commits the lock only after the caller's context expired.
type slowLockDirectory struct {
	*memory.ExecutorDirectory
}

func (d slowLockDirectory) TrySetLocked(ctx context.Context, executorID string) (executor.ClaimResult, error) {
	<-ctx.Done()
	return d.ExecutorDirectory.TrySetLocked(context.Background(), executorID)
}

func TestSelect_ClaimReleasedAfterCallerDeadline(t *testing.T) {
	dir := slowLockDirectory{seed(t, newExec("E1", false))}
	claims := newDeadlineClaims()
	s := NewSelector(dir, newFakeProber(), RandomStrategy{}, claims, nil, Options{}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	got, err := s.Select(ctx, query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)

	claimed, err := claims.IsClaimed(context.Background(), "E1")
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, s.Release(context.Background(), "E1"))
	plain := NewSelector(dir.ExecutorDirectory, newFakeProber(), RandomStrategy{}, claims, nil, Options{}, zerolog.Nop())
	again, err := plain.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "E1", again.ExecutorID)
}

func TestSelect_ClaimRegistryFailureIsUpstreamUnavailable(t *testing.T) {
	dir := seed(t, newExec("E1", false))
	claims := newDeadlineClaims()
	claims.fail["E1"] = true
	s := NewSelector(dir, newFakeProber(), RandomStrategy{}, claims, nil, Options{}, zerolog.Nop())

	got, err := s.Select(context.Background(), query("X"), nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, executor.ErrUpstreamUnavailable)

	fresh, err := dir.FindByID(context.Background(), "E1")
	require.NoError(t, err)
	assert.False(t, fresh.Locked)
}

func TestSelect_ClaimRegistryFailureFallsThroughToNextCandidate(t *testing.T) {
	dir := seed(t, newExec("A", false), newExec("B", false))
	claims := newDeadlineClaims()
	claims.fail["A"] = true
	s := NewSelector(dir, newFakeProber(), &orderStrategy{order: []string{"A", "B"}}, claims, nil, Options{}, zerolog.Nop())

	got, err := s.Select(context.Background(), query("X"), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.ExecutorID)
}
