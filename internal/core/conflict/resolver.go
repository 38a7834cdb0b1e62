package conflict

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/unifydata/unify/internal/core/model"
)

// Policy chooses the resolution strategy for one conflict.
type Policy func(model.AttributeConflict) model.ResolutionStrategy

// Resolver detects conflicts across a multi-source profile and resolves each
// through the strategy its policy picks. Attribute resolutions are
// independent, so detected conflicts are processed concurrently; the log is
// ordered by dimension then attribute regardless of completion order.
type Resolver struct {
	detector *Detector
	policy   Policy
	checks   map[model.AttributeName][]PlausibilityCheck
	limit    int
	logger   *slog.Logger
}

type Option func(*Resolver)

// WithPolicy overrides the default strategy-selection policy.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithPlausibilityChecks registers domain sanity checks per attribute.
// Attributes with checks are resolved by contextual plausibility under the
// default policy.
func WithPlausibilityChecks(checks map[model.AttributeName][]PlausibilityCheck) Option {
	return func(r *Resolver) { r.checks = checks }
}

// WithConcurrency caps how many conflicts resolve in parallel.
func WithConcurrency(limit int) Option {
	return func(r *Resolver) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(detector *Detector, opts ...Option) *Resolver {
	r := &Resolver{
		detector: detector,
		checks:   make(map[model.AttributeName][]PlausibilityCheck),
		limit:    8,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy == nil {
		r.policy = r.defaultPolicy
	}
	return r
}

// defaultPolicy: attributes with configured plausibility checks get
// contextual plausibility; numeric attributes get statistical consensus;
// attributes whose sources differ markedly in declared reliability get
// source reliability; everything else falls back to temporal recency.
func (r *Resolver) defaultPolicy(c model.AttributeConflict) model.ResolutionStrategy {
	if len(r.checks[c.Attribute]) > 0 {
		return model.ContextualPlausibility
	}
	if _, ok := numericValues(c.Candidates); ok {
		return model.StatisticalConsensus
	}
	if reliabilitySpread(c.Candidates) >= 0.2 {
		return model.SourceReliability
	}
	return model.TemporalRecency
}

func reliabilitySpread(candidates []model.Candidate) float64 {
	min, max := candidates[0].SourceReliability, candidates[0].SourceReliability
	for _, c := range candidates[1:] {
		if c.SourceReliability < min {
			min = c.SourceReliability
		}
		if c.SourceReliability > max {
			max = c.SourceReliability
		}
	}
	return max - min
}

// Resolve detects every conflict in profile, resolves them concurrently, and
// returns the resolved profile, the ordered resolution log, and the conflicts
// no strategy could handle. Partial success is the steady state: per-conflict
// failures are isolated, never escalated.
func (r *Resolver) Resolve(ctx context.Context, profile model.Profile) (*model.ResolutionReport, error) {
	conflicts := r.detector.Detect(profile)

	// One slot per conflict; conflicts come pre-sorted by dimension then
	// attribute, and slot order preserves that, keeping the log deterministic.
	entries := make([]*model.ResolutionEntry, len(conflicts))
	failed := make([]bool, len(conflicts))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, c := range conflicts {
		g.Go(func() error {
			strategy := r.policy(c)
			e, err := r.dispatch(strategy, c)
			if err != nil {
				r.logger.Warn("conflict left unresolved",
					"dimension", c.Dimension, "attribute", c.Attribute,
					"strategy", strategy.String(), "error", err)
				failed[i] = true
				return nil
			}
			entries[i] = &e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &model.ResolutionReport{
		Resolved: make(model.ResolvedProfile, len(profile)),
	}
	for i, c := range conflicts {
		if failed[i] {
			report.RemainingConflicts = append(report.RemainingConflicts, c)
			continue
		}
		report.Log = append(report.Log, *entries[i])
	}

	r.buildResolvedProfile(profile, report)
	r.verifyAccounting(report, len(conflicts))
	return report, nil
}

func (r *Resolver) dispatch(s model.ResolutionStrategy, c model.AttributeConflict) (model.ResolutionEntry, error) {
	switch s {
	case model.TemporalRecency:
		return resolveRecency(c)
	case model.SourceReliability:
		return resolveReliability(c)
	case model.StatisticalConsensus:
		return resolveStatistical(c)
	case model.ContextualPlausibility:
		return resolvePlausibility(c, r.checks[c.Attribute])
	default:
		return model.ResolutionEntry{}, fmt.Errorf("strategy %d: %w", s, ErrStrategyMismatch)
	}
}

// buildResolvedProfile fills report.Resolved: resolved conflicts take their
// log entry's value, single-valued attributes pass through untouched, and
// remaining conflicts are left out of the resolved view entirely.
func (r *Resolver) buildResolvedProfile(profile model.Profile, report *model.ResolutionReport) {
	resolvedValue := make(map[model.DimensionName]map[model.AttributeName]any, len(report.Log))
	for _, e := range report.Log {
		if resolvedValue[e.Dimension] == nil {
			resolvedValue[e.Dimension] = make(map[model.AttributeName]any)
		}
		resolvedValue[e.Dimension][e.Attribute] = e.Resolved
	}
	unresolved := make(map[model.DimensionName]map[model.AttributeName]bool, len(report.RemainingConflicts))
	for _, c := range report.RemainingConflicts {
		if unresolved[c.Dimension] == nil {
			unresolved[c.Dimension] = make(map[model.AttributeName]bool)
		}
		unresolved[c.Dimension][c.Attribute] = true
	}

	for dim, attrs := range profile {
		out := make(map[model.AttributeName]any, len(attrs))
		for attr, candidates := range attrs {
			if len(candidates) == 0 || unresolved[dim][attr] {
				continue
			}
			if v, ok := resolvedValue[dim][attr]; ok {
				out[attr] = v
				continue
			}
			out[attr] = candidates[0].Value
		}
		if len(out) > 0 {
			report.Resolved[dim] = out
		}
	}
}

// verifyAccounting checks that every detected conflict landed in exactly one
// of the log or the remaining set. A mismatch is a reporting bug worth a loud
// warning.
func (r *Resolver) verifyAccounting(report *model.ResolutionReport, detected int) {
	if got := len(report.Log) + len(report.RemainingConflicts); got != detected {
		r.logger.Warn("resolution accounting mismatch, this is a reporting bug",
			"detected", detected, "accounted", got)
	}
}
