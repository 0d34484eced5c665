package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"LookTrainer/internal/config"
	"LookTrainer/internal/domain"
	"LookTrainer/internal/metrics"
	"LookTrainer/internal/ports"
)

const defaultPatternLimit = 500

// CompilerDeps wires the rule compiler.
type CompilerDeps struct {
	Patterns ports.PatternStore
	Training config.TrainingConfig
	Sinks    []ports.RulesetSink
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// RuleCompiler merges the static heuristic tables with learned patterns.
type RuleCompiler struct {
	patterns ports.PatternStore
	training config.TrainingConfig
	sinks    []ports.RulesetSink
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	lastVersion atomic.Int64
}

// NewRuleCompiler constructs the compiler.
func NewRuleCompiler(deps CompilerDeps) *RuleCompiler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	training := deps.Training
	if training.PatternLimit <= 0 {
		training.PatternLimit = defaultPatternLimit
	}
	return &RuleCompiler{
		patterns: deps.Patterns,
		training: training,
		sinks:    deps.Sinks,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      now,
	}
}

// Compile builds a fresh ruleset. Pattern store failures degrade to an empty
// learned set; only an unusable static table fails the call.
func (c *RuleCompiler) Compile(ctx context.Context) (domain.CompiledRuleset, error) {
	if len(c.training.Weights) == 0 {
		return domain.CompiledRuleset{}, domain.NewError(domain.KindCompilationFailed, "weight table is empty", nil)
	}
	if len(c.training.PositiveKeywords) == 0 && len(c.training.NegativeKeywords) == 0 {
		return domain.CompiledRuleset{}, domain.NewError(domain.KindCompilationFailed, "keyword lists are empty", nil)
	}

	learned := c.learnedPatterns(ctx)

	ruleset := domain.CompiledRuleset{
		Version: c.nextVersion(),
		Weights: copyWeights(c.training.Weights),
		StaticLists: domain.StaticLists{
			PositiveKeywords: append([]string{}, c.training.PositiveKeywords...),
			NegativeKeywords: append([]string{}, c.training.NegativeKeywords...),
		},
		LearnedPatterns: learned,
	}

	for _, sink := range c.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Put(ctx, ruleset); err != nil {
			c.warn("cannot publish ruleset", "version", ruleset.Version, "error", err)
		}
	}

	c.metrics.RulesCompiled(len(learned))
	c.debug("rules compiled", "version", ruleset.Version, "learned", len(learned))
	return ruleset, nil
}

func (c *RuleCompiler) learnedPatterns(ctx context.Context) []domain.Pattern {
	if c.patterns == nil {
		return []domain.Pattern{}
	}
	patterns, err := c.patterns.SelectPatterns(ctx, c.training.PatternLimit)
	if err != nil {
		c.warn("failed to fetch learning patterns", "error", err)
		return []domain.Pattern{}
	}
	if patterns == nil {
		return []domain.Pattern{}
	}
	return patterns
}

// nextVersion returns the current time in milliseconds, bumped past the
// previous version when the clock has not advanced.
func (c *RuleCompiler) nextVersion() int64 {
	for {
		last := c.lastVersion.Load()
		next := c.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if c.lastVersion.CompareAndSwap(last, next) {
			return next
		}
	}
}

func copyWeights(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (c *RuleCompiler) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *RuleCompiler) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
