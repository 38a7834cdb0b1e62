// Package conflict detects disagreements among sources about profile
// attribute values and resolves each one through a closed set of resolution
// strategies, producing an auditable log. Resolution is best-effort per
// attribute: one unresolvable conflict never aborts the pass.
package conflict

import (
	"fmt"
	"sort"

	"github.com/unifydata/unify/internal/core/model"
)

// DefaultNumericTolerance is the band within which two numeric observations
// count as the same value.
const DefaultNumericTolerance = 1e-9

// Detector scans a multi-source profile for attributes whose sources
// disagree. Equality is exact for categorical values and tolerance-banded for
// numeric ones.
type Detector struct {
	NumericTolerance float64
}

func NewDetector(tolerance float64) *Detector {
	if tolerance <= 0 {
		tolerance = DefaultNumericTolerance
	}
	return &Detector{NumericTolerance: tolerance}
}

// Detect returns one AttributeConflict per attribute with more than one
// distinct value, ordered by dimension then attribute so output is
// reproducible. Attributes with a single distinct value are not conflicts.
func (d *Detector) Detect(profile model.Profile) []model.AttributeConflict {
	var conflicts []model.AttributeConflict
	for dim, attrs := range profile {
		for attr, candidates := range attrs {
			if len(candidates) < 2 {
				continue
			}
			if d.distinctValues(candidates) > 1 {
				conflicts = append(conflicts, model.AttributeConflict{
					Dimension:  dim,
					Attribute:  attr,
					Candidates: candidates,
				})
			}
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Dimension != conflicts[j].Dimension {
			return conflicts[i].Dimension < conflicts[j].Dimension
		}
		return conflicts[i].Attribute < conflicts[j].Attribute
	})
	return conflicts
}

// distinctValues counts value groups among candidates. All-numeric candidate
// lists are grouped by tolerance band anchored at each group's first value;
// anything else groups by exact typed equality.
func (d *Detector) distinctValues(candidates []model.Candidate) int {
	if nums, ok := numericValues(candidates); ok {
		var anchors []float64
	next:
		for _, v := range nums {
			for _, a := range anchors {
				if abs(v-a) <= d.NumericTolerance {
					continue next
				}
			}
			anchors = append(anchors, v)
		}
		return len(anchors)
	}

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[valueKey(c.Value)] = true
	}
	return len(seen)
}

// numericValues extracts float64s when every candidate carries a numeric
// value.
func numericValues(candidates []model.Candidate) ([]float64, bool) {
	nums := make([]float64, len(candidates))
	for i, c := range candidates {
		v, ok := asFloat(c.Value)
		if !ok {
			return nil, false
		}
		nums[i] = v
	}
	return nums, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// valueKey makes values of any type comparable for exact-equality grouping
// without conflating values of different types.
func valueKey(v any) string {
	return fmt.Sprintf("%T:%v", v, v)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
