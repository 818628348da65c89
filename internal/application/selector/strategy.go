package selector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/rs/zerolog"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

// Candidate pairs a filtered executor with its live probe answer.
type Candidate struct {
	Executor *executor.Executor
	Info     *executor.ServiceInfo
}

// Strategy orders probed candidates, most preferred first. It may drop candidates.
type Strategy interface {
	Name() string
	Rank(ctx context.Context, candidates []Candidate) []*executor.Executor
}

// Strategy names.
const (
	StrategyRandom     = "random"
	StrategyLeastLoad  = "least-load"
	StrategyExpression = "expression"
)

// StrategyConfig selects and parameterizes a strategy.
type StrategyConfig struct {
	Name             string  `yaml:"name"`
	MaxLoad          float64 `yaml:"maxLoad"`
	ScoreExpression  string  `yaml:"scoreExpression"`
	FilterExpression string  `yaml:"filterExpression"`
}

// NewStrategy builds the strategy named in cfg.
func NewStrategy(cfg StrategyConfig, logger zerolog.Logger) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", StrategyRandom:
		return RandomStrategy{}, nil
	case StrategyLeastLoad:
		return LeastLoadStrategy{MaxLoad: cfg.MaxLoad}, nil
	case StrategyExpression:
		return NewExpressionStrategy(cfg.ScoreExpression, cfg.FilterExpression, logger)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", cfg.Name)
	}
}

// RandomStrategy returns candidates in uniformly random order.
type RandomStrategy struct{}

func (RandomStrategy) Name() string { return StrategyRandom }

func (RandomStrategy) Rank(_ context.Context, candidates []Candidate) []*executor.Executor {
	out := executorsOf(candidates)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// LeastLoadStrategy prefers lower load, then shorter queues. Candidates at or
// above MaxLoad are dropped when MaxLoad is positive.
type LeastLoadStrategy struct {
	MaxLoad float64
}

func (LeastLoadStrategy) Name() string { return StrategyLeastLoad }

func (s LeastLoadStrategy) Rank(_ context.Context, candidates []Candidate) []*executor.Executor {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if s.MaxLoad > 0 && c.Info.Load >= s.MaxLoad {
			continue
		}
		kept = append(kept, c)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Info.Load != b.Info.Load {
			return a.Info.Load < b.Info.Load
		}
		if a.Info.QueueDepth != b.Info.QueueDepth {
			return a.Info.QueueDepth < b.Info.QueueDepth
		}
		return a.Executor.ExecutorID < b.Executor.ExecutorID
	})
	return executorsOf(kept)
}

// ExpressionStrategy scores candidates with a govaluate expression, lowest first.
// Available parameters: load, queueDepth, minVersion, maxVersion, dependencies, port.
type ExpressionStrategy struct {
	score  *govaluate.EvaluableExpression
	filter *govaluate.EvaluableExpression
	logger zerolog.Logger
}

// NewExpressionStrategy compiles the score and optional filter expressions.
func NewExpressionStrategy(scoreExpr, filterExpr string, logger zerolog.Logger) (*ExpressionStrategy, error) {
	scoreExpr = strings.TrimSpace(scoreExpr)
	if scoreExpr == "" {
		scoreExpr = "load"
	}
	score, err := govaluate.NewEvaluableExpression(scoreExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid score expression: %w", err)
	}
	s := &ExpressionStrategy{
		score:  score,
		logger: logger.With().Str("strategy", StrategyExpression).Logger(),
	}
	if filterExpr = strings.TrimSpace(filterExpr); filterExpr != "" {
		filter, err := govaluate.NewEvaluableExpression(filterExpr)
		if err != nil {
			return nil, fmt.Errorf("invalid filter expression: %w", err)
		}
		s.filter = filter
	}
	return s, nil
}

func (s *ExpressionStrategy) Name() string { return StrategyExpression }

func (s *ExpressionStrategy) Rank(_ context.Context, candidates []Candidate) []*executor.Executor {
	type scored struct {
		exec  *executor.Executor
		score float64
	}
	out := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		params := candidateParams(c)
		if s.filter != nil {
			keep, err := s.filter.Evaluate(params)
			if err != nil {
				s.logger.Warn().Err(err).Str("executor_id", c.Executor.ExecutorID).Msg("filter evaluation failed; dropping candidate")
				continue
			}
			if b, ok := keep.(bool); !ok || !b {
				continue
			}
		}
		result, err := s.score.Evaluate(params)
		if err != nil {
			s.logger.Warn().Err(err).Str("executor_id", c.Executor.ExecutorID).Msg("score evaluation failed; dropping candidate")
			continue
		}
		v, ok := result.(float64)
		if !ok {
			s.logger.Warn().Str("executor_id", c.Executor.ExecutorID).Msg("score did not evaluate to a number; dropping candidate")
			continue
		}
		out = append(out, scored{exec: c.Executor, score: v})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score < out[j].score
		}
		return out[i].exec.ExecutorID < out[j].exec.ExecutorID
	})
	ranked := make([]*executor.Executor, 0, len(out))
	for _, sc := range out {
		ranked = append(ranked, sc.exec)
	}
	return ranked
}

func candidateParams(c Candidate) map[string]interface{} {
	return map[string]interface{}{
		"load":         c.Info.Load,
		"queueDepth":   float64(c.Info.QueueDepth),
		"minVersion":   float64(c.Info.MinVersion),
		"maxVersion":   float64(c.Info.MaxVersion),
		"dependencies": float64(len(c.Info.Dependencies)),
		"port":         float64(c.Executor.Port),
	}
}

func executorsOf(candidates []Candidate) []*executor.Executor {
	out := make([]*executor.Executor, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Executor)
	}
	return out
}
