package model

import "time"

// SourceRecord is the raw identity evidence one upstream source holds about a
// customer: the key that source knows the customer by, plus the contact
// points, devices, behavior fingerprint and payment instruments it observed.
type SourceRecord struct {
	Identity IdentityKey `json:"identity"`
	Source   SourceTag   `json:"source"`

	Emails      []string `json:"emails,omitempty"`
	Phones      []string `json:"phones,omitempty"`
	Devices     []string `json:"devices,omitempty"`
	Instruments []string `json:"instruments,omitempty"`

	// BehaviorVector is a per-source behavioral fingerprint produced by an
	// upstream pattern-mining collaborator. Dimensions are collaborator-defined;
	// this core only compares vectors of equal length.
	BehaviorVector []float64 `json:"behavior_vector,omitempty"`

	ObservedFrom time.Time `json:"observed_from"`
	ObservedTo   time.Time `json:"observed_to,omitempty"`
}

// EvidenceSet is everything the consensus resolver gets to work with: the
// subject's reference evidence plus one record per contributing source.
type EvidenceSet struct {
	Subject SourceRecord   `json:"subject"`
	Records []SourceRecord `json:"records"`
}
