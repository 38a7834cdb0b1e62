package model

import "time"

// DimensionName groups related profile attributes, e.g. "demographic" or
// "financial".
type DimensionName string

// AttributeName identifies one attribute within a dimension, e.g. "city".
type AttributeName string

// Candidate is one source's value for one profile attribute.
type Candidate struct {
	Value             any       `json:"value"`
	Source            SourceTag `json:"source"`
	ObservedAt        time.Time `json:"observed_at"`
	SourceReliability float64   `json:"source_reliability"` // in [0,1]
}

// Profile is a multi-dimensional, multi-source view of one customer:
// dimension -> attribute -> the values each source reported.
type Profile map[DimensionName]map[AttributeName][]Candidate

// ResolvedProfile is the single-valued view after conflict resolution.
type ResolvedProfile map[DimensionName]map[AttributeName]any

// AttributeConflict is a disagreement among sources about one attribute.
// Conflicts are transient: the detector produces them and the resolver
// consumes them within the same call.
type AttributeConflict struct {
	Dimension  DimensionName `json:"dimension"`
	Attribute  AttributeName `json:"attribute"`
	Candidates []Candidate   `json:"candidates"`
}
