// Package consensus resolves one master identity from the claims of several
// independent resolution strategies. Strategies run concurrently and are
// best-effort: a failing strategy contributes no evidence but never aborts
// the others. Aggregation is a single-threaded weighted vote after the join
// point, so no shared state is written concurrently.
package consensus

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/unifydata/unify/internal/core/identity"
	"github.com/unifydata/unify/internal/core/model"
)

// ErrNoIdentityEvidence reports that every strategy failed or returned no
// claims. The caller must not fall back to the initial identifier with false
// confidence.
var ErrNoIdentityEvidence = errors.New("consensus: no identity evidence from any strategy")

// ClaimStrategy is one independent way of linking candidate identities to the
// subject, e.g. by contact fingerprint or device linkage. Claims must be pure
// over their input; the resolver owns all aggregation.
type ClaimStrategy interface {
	Name() string
	Claims(ctx context.Context, ev model.EvidenceSet) ([]model.IdentityClaim, error)
}

// ClusterDetector groups identities of a populated graph. Advisory only:
// cluster output never changes winner selection.
type ClusterDetector interface {
	Detect(g *identity.Graph) []model.IdentityCluster
}

// Result is the outcome of one resolution call. It is owned by that call and
// read-only to downstream consumers.
type Result struct {
	MasterIdentity    model.IdentityKey
	Graph             *identity.Graph
	OverallConfidence float64
	Attributes        map[model.AttributeName]any
	Clusters          []model.IdentityCluster
	Votes             map[model.IdentityKey]model.VoteTally
}

// Resolver fans out claim strategies, reduces their claims by weighted vote,
// and builds the identity graph for the winning consensus.
type Resolver struct {
	strategies []ClaimStrategy
	weights    map[string]float64 // by strategy name; absent means 1.0
	clusterer  ClusterDetector    // optional
	logger     *slog.Logger
}

type Option func(*Resolver)

// WithWeights sets per-strategy reliability weights. Strategies not listed
// keep the uniform default of 1.0.
func WithWeights(weights map[string]float64) Option {
	return func(r *Resolver) { r.weights = weights }
}

// WithClusterDetector enables identity cluster detection on the populated
// graph.
func WithClusterDetector(d ClusterDetector) Option {
	return func(r *Resolver) { r.clusterer = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(strategies []ClaimStrategy, opts ...Option) *Resolver {
	r := &Resolver{
		strategies: strategies,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) weight(name string) float64 {
	if w, ok := r.weights[name]; ok {
		return w
	}
	return 1.0
}

// Resolve runs every strategy concurrently over ev, joins all-complete,
// reduces the union of claims by weighted vote, and returns the winning
// identity with the populated graph. Ties break on more contributing sources,
// then on the lexicographically smaller key, so the outcome is reproducible.
func (r *Resolver) Resolve(ctx context.Context, initial model.IdentityKey, ev model.EvidenceSet) (*Result, error) {
	claimSets := r.fanOut(ctx, ev)

	votes := r.tally(claimSets)
	if len(votes) == 0 {
		return nil, ErrNoIdentityEvidence
	}

	winner := pickWinner(votes)

	graph := identity.NewGraph()
	graph.AddNode(initial, model.SourceInitial, 1.0)
	for _, claims := range claimSets {
		for _, c := range claims {
			graph.AddNode(c.Identity, c.Source, c.Confidence)
			if err := graph.AddEdge(initial, c.Identity, c.Relationship, c.Confidence, c.Validity); err != nil {
				return nil, err
			}
		}
	}

	var totalWeight float64
	for _, s := range r.strategies {
		totalWeight += r.weight(s.Name())
	}
	confidence := 0.0
	if totalWeight > 0 {
		confidence = votes[winner].Score / totalWeight
	}

	result := &Result{
		MasterIdentity:    winner,
		Graph:             graph,
		OverallConfidence: confidence,
		Attributes:        subjectAttributes(ev.Subject),
		Votes:             votes,
	}
	if r.clusterer != nil {
		result.Clusters = r.clusterer.Detect(graph)
	}
	return result, nil
}

// fanOut runs all strategies in parallel and joins all-complete. A strategy
// failure is absorbed as an empty claim set: identity resolution is
// best-effort over heterogeneous, unreliable data.
func (r *Resolver) fanOut(ctx context.Context, ev model.EvidenceSet) [][]model.IdentityClaim {
	claimSets := make([][]model.IdentityClaim, len(r.strategies))

	var wg sync.WaitGroup
	for i, s := range r.strategies {
		wg.Add(1)
		go func(i int, s ClaimStrategy) {
			defer wg.Done()
			claims, err := s.Claims(ctx, ev)
			if err != nil {
				r.logger.Warn("claim strategy failed, treating as empty evidence",
					"strategy", s.Name(), "error", err)
				return
			}
			claimSets[i] = claims
		}(i, s)
	}
	wg.Wait()

	return claimSets
}

// tally accumulates vote[key] += weight(strategy) * claim.confidence across
// the union of claims, recording contributing sources. Single linear pass.
func (r *Resolver) tally(claimSets [][]model.IdentityClaim) map[model.IdentityKey]model.VoteTally {
	votes := make(map[model.IdentityKey]model.VoteTally)
	for i, claims := range claimSets {
		w := r.weight(r.strategies[i].Name())
		for _, c := range claims {
			t := votes[c.Identity]
			t.Score += w * c.Confidence
			if !containsSource(t.Sources, c.Source) {
				t.Sources = append(t.Sources, c.Source)
			}
			votes[c.Identity] = t
		}
	}
	return votes
}

// pickWinner selects the key with the strictly highest score. On a score tie
// the key with more contributing sources wins; on a full tie the
// lexicographically smaller key wins. Candidates are visited in sorted key
// order, never map iteration order.
func pickWinner(votes map[model.IdentityKey]model.VoteTally) model.IdentityKey {
	keys := make([]model.IdentityKey, 0, len(votes))
	for k := range votes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	winner := keys[0]
	for _, k := range keys[1:] {
		kt, wt := votes[k], votes[winner]
		switch {
		case kt.Score > wt.Score:
			winner = k
		case kt.Score == wt.Score && len(kt.Sources) > len(wt.Sources):
			winner = k
		}
	}
	return winner
}

func containsSource(sources []model.SourceTag, s model.SourceTag) bool {
	for _, have := range sources {
		if have == s {
			return true
		}
	}
	return false
}

// subjectAttributes lifts the subject's primary contact points into the
// consensus result so profile synthesis can key off them.
func subjectAttributes(subject model.SourceRecord) map[model.AttributeName]any {
	attrs := make(map[model.AttributeName]any)
	if len(subject.Emails) > 0 {
		attrs["primary_email"] = subject.Emails[0]
	}
	if len(subject.Phones) > 0 {
		attrs["primary_phone"] = subject.Phones[0]
	}
	if len(subject.Devices) > 0 {
		attrs["known_devices"] = len(subject.Devices)
	}
	return attrs
}
