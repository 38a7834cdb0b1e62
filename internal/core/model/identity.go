package model

import "time"

// IdentityKey is an opaque handle for one candidate real-world identity.
// Keys are compared byte-wise; lexicographic order is used for deterministic
// tie-breaking, never for meaning.
type IdentityKey string

// SourceTag names the upstream system an observation came from.
type SourceTag string

// SourceInitial tags the identifier the caller started resolution with.
const SourceInitial SourceTag = "initial"

// RelationshipKind labels an edge in the identity graph, e.g. "shares-contact"
// or "same-device".
type RelationshipKind string

const (
	RelSharesContact    RelationshipKind = "shares-contact"
	RelSameDevice       RelationshipKind = "same-device"
	RelBehaviorMatch    RelationshipKind = "behavior-match"
	RelSharedInstrument RelationshipKind = "shared-instrument"
)

// TimeRange scopes a claim to the window in which its evidence was observed.
// A zero To means the claim is still considered current.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to,omitempty"`
}

// IdentityClaim is one strategy's assertion that a candidate identity is
// linked to the subject being resolved.
type IdentityClaim struct {
	Identity     IdentityKey      `json:"identity"`
	Source       SourceTag        `json:"source"`
	Relationship RelationshipKind `json:"relationship"`
	Confidence   float64          `json:"confidence"` // in [0,1]
	Validity     TimeRange        `json:"validity"`
}

// IdentityNode is a vertex in the identity graph. At most one node exists per
// key; re-adding merges metadata instead of duplicating.
type IdentityNode struct {
	Identity   IdentityKey `json:"identity"`
	Sources    []SourceTag `json:"sources"`
	Confidence float64     `json:"confidence"`
}

// IdentityEdge is a directed, confidence-weighted, time-scoped relationship
// between two identities. Multiple edges between the same pair are legal when
// they differ in relationship kind or temporal scope: each is a distinct
// evidentiary claim, not a duplicate of one fact.
type IdentityEdge struct {
	From         IdentityKey      `json:"from"`
	To           IdentityKey      `json:"to"`
	Relationship RelationshipKind `json:"relationship"`
	Confidence   float64          `json:"confidence"`
	Validity     TimeRange        `json:"validity"`
}

// IdentityCluster is a group of identities that label propagation over the
// identity graph placed together. Clusters are advisory output; they never
// influence winner selection.
type IdentityCluster struct {
	Members []IdentityKey `json:"members"`
}
