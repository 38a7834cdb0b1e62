package conflict

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/unifydata/unify/internal/core/model"
)

// ErrStrategyMismatch reports that the strategy chosen for a conflict cannot
// handle the attribute's data type. The conflict is surfaced via the
// remaining-conflicts set instead of aborting the pass.
var ErrStrategyMismatch = errors.New("conflict: strategy cannot handle attribute type")

// recencyWindow scales the confidence of a temporal-recency win: a gap of one
// window over the runner-up approaches full confidence.
const recencyWindow = 30 * 24 * time.Hour

// resolveRecency picks the candidate observed last. Confidence scales with
// the gap to the next-latest observation.
func resolveRecency(c model.AttributeConflict) (model.ResolutionEntry, error) {
	latest, runnerUp := 0, -1
	for i := 1; i < len(c.Candidates); i++ {
		switch {
		case c.Candidates[i].ObservedAt.After(c.Candidates[latest].ObservedAt):
			runnerUp = latest
			latest = i
		case runnerUp == -1 || c.Candidates[i].ObservedAt.After(c.Candidates[runnerUp].ObservedAt):
			runnerUp = i
		}
	}

	gap := time.Duration(0)
	if runnerUp >= 0 {
		gap = c.Candidates[latest].ObservedAt.Sub(c.Candidates[runnerUp].ObservedAt)
	}
	confidence := 0.5 + 0.5*math.Min(1, float64(gap)/float64(recencyWindow))

	winner := c.Candidates[latest]
	return entry(c, model.TemporalRecency, winner.Value, confidence,
		fmt.Sprintf("latest observation from %s at %s, %s ahead of next source",
			winner.Source, winner.ObservedAt.Format(time.RFC3339), gap)), nil
}

// resolveReliability picks the candidate from the source with the highest
// declared reliability; ties keep the earlier candidate in the ordered list.
func resolveReliability(c model.AttributeConflict) (model.ResolutionEntry, error) {
	best := 0
	for i := 1; i < len(c.Candidates); i++ {
		if c.Candidates[i].SourceReliability > c.Candidates[best].SourceReliability {
			best = i
		}
	}
	winner := c.Candidates[best]
	return entry(c, model.SourceReliability, winner.Value, winner.SourceReliability,
		fmt.Sprintf("source %s has highest declared reliability %.2f",
			winner.Source, winner.SourceReliability)), nil
}

// resolveStatistical aggregates: reliability-weighted mean for numeric
// attributes, mode for categorical ones. Values that are neither numeric nor
// scalar-categorical are a strategy mismatch.
func resolveStatistical(c model.AttributeConflict) (model.ResolutionEntry, error) {
	if nums, ok := numericValues(c.Candidates); ok {
		return statisticalMean(c, nums), nil
	}
	if categorical(c.Candidates) {
		return statisticalMode(c), nil
	}
	return model.ResolutionEntry{}, fmt.Errorf(
		"statistical consensus over %s/%s: %w", c.Dimension, c.Attribute, ErrStrategyMismatch)
}

func statisticalMean(c model.AttributeConflict, nums []float64) model.ResolutionEntry {
	var sum, weightSum float64
	for i, v := range nums {
		w := c.Candidates[i].SourceReliability
		if w <= 0 {
			w = 1
		}
		sum += w * v
		weightSum += w
	}
	mean := sum / weightSum

	// inverse coefficient of variation as agreement confidence
	var variance float64
	for _, v := range nums {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(nums))
	confidence := 1.0
	if mean != 0 {
		cv := math.Sqrt(variance) / math.Abs(mean)
		confidence = 1 / (1 + cv)
	} else if variance > 0 {
		confidence = 0
	}

	return entry(c, model.StatisticalConsensus, mean, confidence,
		fmt.Sprintf("reliability-weighted mean of %d numeric observations", len(nums)))
}

func statisticalMode(c model.AttributeConflict) model.ResolutionEntry {
	counts := make(map[string]int)
	values := make(map[string]any)
	for _, cand := range c.Candidates {
		k := valueKey(cand.Value)
		counts[k]++
		values[k] = cand.Value
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic mode tie-break

	mode := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[mode] {
			mode = k
		}
	}

	agreement := float64(counts[mode]) / float64(len(c.Candidates))
	return entry(c, model.StatisticalConsensus, values[mode], agreement,
		fmt.Sprintf("mode shared by %d of %d sources", counts[mode], len(c.Candidates)))
}

func categorical(candidates []model.Candidate) bool {
	for _, c := range candidates {
		switch c.Value.(type) {
		case string, bool:
		default:
			return false
		}
	}
	return true
}

// PlausibilityCheck is one domain sanity check a candidate value either
// passes or fails.
type PlausibilityCheck interface {
	Describe() string
	Passes(c model.Candidate) bool
}

// RangeCheck passes numeric values inside [Min, Max].
type RangeCheck struct {
	Min, Max float64
}

func (r RangeCheck) Describe() string { return fmt.Sprintf("range [%g, %g]", r.Min, r.Max) }

func (r RangeCheck) Passes(c model.Candidate) bool {
	v, ok := asFloat(c.Value)
	return ok && v >= r.Min && v <= r.Max
}

// AllowedValuesCheck passes values from a known vocabulary.
type AllowedValuesCheck struct {
	Values []string
}

func (a AllowedValuesCheck) Describe() string { return fmt.Sprintf("one of %v", a.Values) }

func (a AllowedValuesCheck) Passes(c model.Candidate) bool {
	s, ok := c.Value.(string)
	if !ok {
		return false
	}
	for _, v := range a.Values {
		if v == s {
			return true
		}
	}
	return false
}

// ConsistentWithCheck passes candidates whose source also supplied the named
// sibling attribute, a weak cross-attribute consistency signal.
type ConsistentWithCheck struct {
	Sibling model.AttributeName
	Seen    map[model.SourceTag]bool
}

func (cc ConsistentWithCheck) Describe() string {
	return fmt.Sprintf("source also reports %s", cc.Sibling)
}

func (cc ConsistentWithCheck) Passes(c model.Candidate) bool {
	return cc.Seen[c.Source]
}

// resolvePlausibility picks the candidate passing the most checks; confidence
// is the fraction of checks the winner passed. No checks configured for the
// attribute is a strategy mismatch.
func resolvePlausibility(c model.AttributeConflict, checks []PlausibilityCheck) (model.ResolutionEntry, error) {
	if len(checks) == 0 {
		return model.ResolutionEntry{}, fmt.Errorf(
			"contextual plausibility over %s/%s without configured checks: %w",
			c.Dimension, c.Attribute, ErrStrategyMismatch)
	}

	best, bestPassed := 0, -1
	for i, cand := range c.Candidates {
		passed := 0
		for _, check := range checks {
			if check.Passes(cand) {
				passed++
			}
		}
		if passed > bestPassed {
			best, bestPassed = i, passed
		}
	}

	winner := c.Candidates[best]
	confidence := float64(bestPassed) / float64(len(checks))
	return entry(c, model.ContextualPlausibility, winner.Value, confidence,
		fmt.Sprintf("candidate from %s passed %d of %d plausibility checks",
			winner.Source, bestPassed, len(checks))), nil
}

func entry(c model.AttributeConflict, s model.ResolutionStrategy, value any, confidence float64, explanation string) model.ResolutionEntry {
	return model.ResolutionEntry{
		Dimension:   c.Dimension,
		Attribute:   c.Attribute,
		Conflict:    describeConflict(c),
		Strategy:    s,
		Resolved:    value,
		Explanation: explanation,
		Confidence:  confidence,
	}
}

func describeConflict(c model.AttributeConflict) string {
	return fmt.Sprintf("%d sources disagree on %s/%s", len(c.Candidates), c.Dimension, c.Attribute)
}
