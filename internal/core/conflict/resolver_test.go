package conflict

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifydata/unify/internal/core/model"
)

func TestSourceReliabilityStrategy(t *testing.T) {
	// income reported as 5000 (reliability 0.9) and 7000 (reliability 0.4):
	// the reliable source wins with its own reliability as confidence.
	profile := model.Profile{
		"financial": {
			"income": {
				{Value: 5000.0, Source: "srcA", ObservedAt: at(5), SourceReliability: 0.9},
				{Value: 7000.0, Source: "srcB", ObservedAt: at(9), SourceReliability: 0.4},
			},
		},
	}

	r := NewResolver(NewDetector(0), WithPolicy(func(model.AttributeConflict) model.ResolutionStrategy {
		return model.SourceReliability
	}))

	report, err := r.Resolve(context.Background(), profile)
	require.NoError(t, err)

	require.Len(t, report.Log, 1)
	assert.Equal(t, model.SourceReliability, report.Log[0].Strategy)
	assert.Equal(t, 5000.0, report.Log[0].Resolved)
	assert.Equal(t, 0.9, report.Log[0].Confidence)
	assert.Equal(t, 5000.0, report.Resolved["financial"]["income"])
	assert.Empty(t, report.RemainingConflicts)
}

func TestTemporalRecencyStrategy(t *testing.T) {
	profile := model.Profile{
		"demographic": {
			"city": {
				{Value: "NYC", Source: "srcA", ObservedAt: at(100)},
				{Value: "Boston", Source: "srcB", ObservedAt: at(5000)},
			},
		},
	}

	r := NewResolver(NewDetector(0), WithPolicy(func(model.AttributeConflict) model.ResolutionStrategy {
		return model.TemporalRecency
	}))

	report, err := r.Resolve(context.Background(), profile)
	require.NoError(t, err)
	require.Len(t, report.Log, 1)
	assert.Equal(t, "Boston", report.Log[0].Resolved)
	assert.GreaterOrEqual(t, report.Log[0].Confidence, 0.5)
}

func TestStatisticalConsensusMode(t *testing.T) {
	profile := model.Profile{
		"demographic": {
			"segment": {
				{Value: "premium", Source: "srcA", ObservedAt: at(1)},
				{Value: "premium", Source: "srcB", ObservedAt: at(2)},
				{Value: "basic", Source: "srcC", ObservedAt: at(3)},
			},
		},
	}

	r := NewResolver(NewDetector(0), WithPolicy(func(model.AttributeConflict) model.ResolutionStrategy {
		return model.StatisticalConsensus
	}))

	report, err := r.Resolve(context.Background(), profile)
	require.NoError(t, err)
	require.Len(t, report.Log, 1)
	assert.Equal(t, "premium", report.Log[0].Resolved)
	assert.InDelta(t, 2.0/3.0, report.Log[0].Confidence, 1e-9)
}

func TestStatisticalConsensusWeightedMean(t *testing.T) {
	profile := model.Profile{
		"financial": {
			"income": {
				{Value: 4000.0, Source: "srcA", ObservedAt: at(1), SourceReliability: 1.0},
				{Value: 6000.0, Source: "srcB", ObservedAt: at(2), SourceReliability: 1.0},
			},
		},
	}

	r := NewResolver(NewDetector(0)) // default policy: numeric -> statistical
	report, err := r.Resolve(context.Background(), profile)
	require.NoError(t, err)
	require.Len(t, report.Log, 1)
	assert.Equal(t, model.StatisticalConsensus, report.Log[0].Strategy)
	assert.InDelta(t, 5000.0, report.Log[0].Resolved.(float64), 1e-9)
}

func TestContextualPlausibility(t *testing.T) {
	profile := model.Profile{
		"demographic": {
			"age": {
				{Value: 34.0, Source: "srcA", ObservedAt: at(1)},
				{Value: 340.0, Source: "srcB", ObservedAt: at(2)},
			},
		},
	}

	r := NewResolver(NewDetector(0), WithPlausibilityChecks(map[model.AttributeName][]PlausibilityCheck{
		"age": {RangeCheck{Min: 0, Max: 120}},
	}))

	report, err := r.Resolve(context.Background(), profile)
	require.NoError(t, err)
	require.Len(t, report.Log, 1)
	assert.Equal(t, model.ContextualPlausibility, report.Log[0].Strategy)
	assert.Equal(t, 34.0, report.Log[0].Resolved)
	assert.Equal(t, 1.0, report.Log[0].Confidence)
}

func TestStrategyMismatchIsIsolated(t *testing.T) {
	// Free-form value (a slice) cannot take statistical consensus; the other
	// conflict must still resolve.
	profile := model.Profile{
		"behavioral": {
			"interests": {
				{Value: []string{"golf"}, Source: "srcA", ObservedAt: at(1)},
				{Value: []string{"chess"}, Source: "srcB", ObservedAt: at(2)},
			},
		},
		"financial": {
			"income": {
				{Value: 4000.0, Source: "srcA", ObservedAt: at(1)},
				{Value: 6000.0, Source: "srcB", ObservedAt: at(2)},
			},
		},
	}

	r := NewResolver(NewDetector(0), WithPolicy(func(model.AttributeConflict) model.ResolutionStrategy {
		return model.StatisticalConsensus
	}))

	report, err := r.Resolve(context.Background(), profile)
	require.NoError(t, err)

	require.Len(t, report.Log, 1)
	assert.Equal(t, model.AttributeName("income"), report.Log[0].Attribute)
	require.Len(t, report.RemainingConflicts, 1)
	assert.Equal(t, model.AttributeName("interests"), report.RemainingConflicts[0].Attribute)

	// unresolved attributes stay out of the resolved view
	_, ok := report.Resolved["behavioral"]["interests"]
	assert.False(t, ok)
}

func TestNoDataLossOnConflicts(t *testing.T) {
	disagreeNum := []model.Candidate{
		{Value: 1.0, Source: "srcA", ObservedAt: at(1)},
		{Value: 2.0, Source: "srcB", ObservedAt: at(2)},
	}
	disagreeText := []model.Candidate{
		{Value: []string{"a"}, Source: "srcA", ObservedAt: at(1)},
		{Value: []string{"b"}, Source: "srcB", ObservedAt: at(2)},
	}
	profile := model.Profile{
		"d1": {"a": disagreeNum, "b": disagreeText},
		"d2": {"c": disagreeNum, "d": disagreeNum},
	}

	detector := NewDetector(0)
	detected := detector.Detect(profile)

	r := NewResolver(detector, WithPolicy(func(model.AttributeConflict) model.ResolutionStrategy {
		return model.StatisticalConsensus
	}))
	report, err := r.Resolve(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, len(detected), len(report.Log)+len(report.RemainingConflicts))
}

type warnCountHandler struct {
	warns *int
}

func (h warnCountHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (h warnCountHandler) Handle(_ context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelWarn {
		*h.warns++
	}
	return nil
}

func (h warnCountHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h warnCountHandler) WithGroup(string) slog.Handler      { return h }

func TestAccountingMismatchWarns(t *testing.T) {
	warns := 0
	r := NewResolver(NewDetector(0), WithLogger(slog.New(warnCountHandler{warns: &warns})))

	balanced := &model.ResolutionReport{
		Log:                []model.ResolutionEntry{{Attribute: "income"}},
		RemainingConflicts: []model.AttributeConflict{{Attribute: "interests"}},
	}
	r.verifyAccounting(balanced, 2)
	assert.Equal(t, 0, warns)

	r.verifyAccounting(balanced, 3)
	assert.Equal(t, 1, warns)
}

func TestSingleSourceAttributeIsNeverAltered(t *testing.T) {
	profile := model.Profile{
		"demographic": {
			"city": {{Value: "NYC", Source: "srcA", ObservedAt: at(1)}},
		},
	}

	report, err := NewResolver(NewDetector(0)).Resolve(context.Background(), profile)
	require.NoError(t, err)
	assert.Empty(t, report.Log)
	assert.Equal(t, "NYC", report.Resolved["demographic"]["city"])
}

func TestLogOrderIsDeterministic(t *testing.T) {
	disagree := []model.Candidate{
		{Value: "x", Source: "srcA", ObservedAt: at(1)},
		{Value: "y", Source: "srcB", ObservedAt: at(2)},
	}
	profile := model.Profile{
		"zeta":  {"b": disagree, "a": disagree},
		"alpha": {"z": disagree},
	}

	r := NewResolver(NewDetector(0), WithConcurrency(4))
	for i := 0; i < 10; i++ {
		report, err := r.Resolve(context.Background(), profile)
		require.NoError(t, err)
		require.Len(t, report.Log, 3)
		assert.Equal(t, model.DimensionName("alpha"), report.Log[0].Dimension)
		assert.Equal(t, model.AttributeName("a"), report.Log[1].Attribute)
		assert.Equal(t, model.AttributeName("b"), report.Log[2].Attribute)
	}
}
