package model

// ResolutionStrategy is the closed set of conflict-resolution strategies.
// Dispatch is over this enum, not over string-keyed lookup tables, so an
// unknown strategy is unrepresentable.
type ResolutionStrategy int

const (
	TemporalRecency ResolutionStrategy = iota
	SourceReliability
	StatisticalConsensus
	ContextualPlausibility
)

func (s ResolutionStrategy) String() string {
	switch s {
	case TemporalRecency:
		return "temporal_recency"
	case SourceReliability:
		return "source_reliability"
	case StatisticalConsensus:
		return "statistical_consensus"
	case ContextualPlausibility:
		return "contextual_plausibility"
	default:
		return "unknown"
	}
}

// ResolutionEntry is one line of the audit trail: which conflict was resolved,
// by which strategy, to which value, and why.
type ResolutionEntry struct {
	Dimension   DimensionName      `json:"dimension"`
	Attribute   AttributeName      `json:"attribute"`
	Conflict    string             `json:"conflict"`
	Strategy    ResolutionStrategy `json:"strategy"`
	Resolved    any                `json:"resolved"`
	Explanation string             `json:"explanation"`
	Confidence  float64            `json:"confidence"`
}

// ResolutionReport is the complete outcome of one conflict-resolution pass.
// The log is append-only and sorted by dimension then attribute; conflicts
// that could not be resolved are returned explicitly, never dropped.
type ResolutionReport struct {
	Resolved           ResolvedProfile     `json:"resolved"`
	Log                []ResolutionEntry   `json:"log"`
	RemainingConflicts []AttributeConflict `json:"remaining_conflicts"`
}

// VoteTally records the accumulated weighted vote and contributing sources
// for one candidate identity. The score ranks candidates; it is not a
// probability.
type VoteTally struct {
	Score   float64     `json:"score"`
	Sources []SourceTag `json:"sources"`
}
