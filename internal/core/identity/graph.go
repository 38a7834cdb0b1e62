// Package identity holds the per-request identity graph: nodes for candidate
// identities and directed, confidence-weighted, time-scoped edges between
// them. A graph is created fresh for one resolution call, mutated only by
// that call, and read-only afterwards, so it carries no locking.
package identity

import (
	"errors"
	"fmt"
	"iter"

	"github.com/unifydata/unify/internal/core/model"
)

// ErrDanglingReference reports an edge inserted before one of its endpoint
// nodes. This is a programmer error and aborts the resolution call.
var ErrDanglingReference = errors.New("identity: edge endpoint not present in graph")

// Graph is a mutable directed multigraph of identity nodes. Cycles are legal;
// traversal tracks a visited set.
type Graph struct {
	nodes map[model.IdentityKey]*model.IdentityNode
	out   map[model.IdentityKey][]model.IdentityEdge
	order []model.IdentityKey // node insertion order, keeps iteration deterministic
}

func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[model.IdentityKey]*model.IdentityNode),
		out:   make(map[model.IdentityKey][]model.IdentityEdge),
	}
}

// AddNode inserts key or, if it already exists, merges metadata: the higher
// confidence wins and source is recorded as an additional origin. Idempotent.
func (g *Graph) AddNode(key model.IdentityKey, source model.SourceTag, confidence float64) {
	if n, ok := g.nodes[key]; ok {
		if confidence > n.Confidence {
			n.Confidence = confidence
		}
		for _, s := range n.Sources {
			if s == source {
				return
			}
		}
		n.Sources = append(n.Sources, source)
		return
	}
	g.nodes[key] = &model.IdentityNode{
		Identity:   key,
		Sources:    []model.SourceTag{source},
		Confidence: confidence,
	}
	g.order = append(g.order, key)
}

// AddEdge appends a directed edge from -> to. Both endpoints must already be
// nodes. Edges with the same endpoints and relationship but different temporal
// scope are distinct evidentiary claims and are all retained.
func (g *Graph) AddEdge(from, to model.IdentityKey, rel model.RelationshipKind, confidence float64, validity model.TimeRange) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("adding edge %s -> %s: %w", from, to, ErrDanglingReference)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("adding edge %s -> %s: %w", from, to, ErrDanglingReference)
	}
	g.out[from] = append(g.out[from], model.IdentityEdge{
		From:         from,
		To:           to,
		Relationship: rel,
		Confidence:   confidence,
		Validity:     validity,
	})
	return nil
}

// Node returns a copy of the node for key.
func (g *Graph) Node(key model.IdentityKey) (model.IdentityNode, bool) {
	n, ok := g.nodes[key]
	if !ok {
		return model.IdentityNode{}, false
	}
	return *n, true
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []model.IdentityNode {
	out := make([]model.IdentityNode, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, *g.nodes[key])
	}
	return out
}

// Edges returns all edges grouped by source node in insertion order.
func (g *Graph) Edges() []model.IdentityEdge {
	var out []model.IdentityEdge
	for _, key := range g.order {
		out = append(out, g.out[key]...)
	}
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.out {
		n += len(edges)
	}
	return n
}

// Neighbors yields each outgoing edge of key together with its target node.
// The sequence is lazy and restartable: re-iterating re-reads current graph
// state rather than a snapshot.
func (g *Graph) Neighbors(key model.IdentityKey) iter.Seq2[model.IdentityEdge, model.IdentityNode] {
	return func(yield func(model.IdentityEdge, model.IdentityNode) bool) {
		for _, e := range g.out[key] {
			if !yield(e, *g.nodes[e.To]) {
				return
			}
		}
	}
}

// Walk visits every node reachable from start in breadth-first order, calling
// fn for each. Returning false from fn stops the walk. A visited set makes
// cyclic graphs safe to traverse.
func (g *Graph) Walk(start model.IdentityKey, fn func(model.IdentityNode) bool) {
	if _, ok := g.nodes[start]; !ok {
		return
	}
	visited := map[model.IdentityKey]bool{start: true}
	queue := []model.IdentityKey{start}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if !fn(*g.nodes[key]) {
			return
		}
		for _, e := range g.out[key] {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
}
