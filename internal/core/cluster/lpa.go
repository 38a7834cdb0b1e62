// Package cluster groups the identities of a populated identity graph using
// label propagation. Clusters are advisory: they surface sets of identities
// that likely refer to the same customer, alongside the single consensus
// winner, and never influence winner selection.
package cluster

import (
	"sort"

	"github.com/unifydata/unify/internal/core/identity"
	"github.com/unifydata/unify/internal/core/model"
)

// LabelPropagationDetector clusters identities by propagating labels across
// the graph until they stabilize. Edge multiplicity acts as weight: several
// evidentiary claims between two identities bind them more strongly than one.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{MaxIterations: 20}
}

func (d *LabelPropagationDetector) Detect(g *identity.Graph) []model.IdentityCluster {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil
	}

	// Undirected weighted adjacency; each edge counts once per claim.
	adj := make(map[model.IdentityKey]map[model.IdentityKey]int, len(nodes))
	for _, n := range nodes {
		adj[n.Identity] = make(map[model.IdentityKey]int)
	}
	for _, e := range g.Edges() {
		adj[e.From][e.To]++
		adj[e.To][e.From]++
	}

	// Every identity starts with its own label.
	labels := make(map[model.IdentityKey]model.IdentityKey, len(nodes))
	keys := make([]model.IdentityKey, len(nodes))
	for i, n := range nodes {
		labels[n.Identity] = n.Identity
		keys[i] = n.Identity
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range keys {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[model.IdentityKey]int, len(neighbors))
			maxCount := 0
			for v, weight := range neighbors {
				counts[labels[v]] += weight
				if counts[labels[v]] > maxCount {
					maxCount = counts[labels[v]]
				}
			}

			// Ties break on the lexicographically largest label so the
			// outcome never depends on map iteration order.
			var best model.IdentityKey
			for label, count := range counts {
				if count == maxCount && label > best {
					best = label
				}
			}

			if labels[u] != best {
				labels[u] = best
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	grouped := make(map[model.IdentityKey][]model.IdentityKey)
	for _, u := range keys {
		grouped[labels[u]] = append(grouped[labels[u]], u)
	}

	var clusters []model.IdentityCluster
	for _, members := range grouped {
		if len(members) < 2 {
			continue // a singleton is not a cluster
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		clusters = append(clusters, model.IdentityCluster{Members: members})
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Members[0] < clusters[j].Members[0]
	})
	return clusters
}
