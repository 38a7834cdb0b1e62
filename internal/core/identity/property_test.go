package identity

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/unifydata/unify/internal/core/model"
)

// Properties that must hold for any sequence of graph operations.
func TestGraphInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("every edge's endpoints exist as nodes", prop.ForAll(
		func(keys []string, pairs [][2]int) bool {
			g := NewGraph()
			for _, k := range keys {
				g.AddNode(model.IdentityKey(k), "gen", 0.5)
			}
			for _, p := range pairs {
				var from, to model.IdentityKey
				if len(keys) > 0 {
					from = model.IdentityKey(keys[p[0]%len(keys)])
				}
				// half the time reference a key never added
				if p[1]%2 == 0 && len(keys) > 0 {
					to = model.IdentityKey(keys[p[1]%len(keys)])
				} else {
					to = model.IdentityKey("missing")
				}
				_ = g.AddEdge(from, to, model.RelSameDevice, 0.5, model.TimeRange{})
			}
			for _, e := range g.Edges() {
				if _, ok := g.Node(e.From); !ok {
					return false
				}
				if _, ok := g.Node(e.To); !ok {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gopter.CombineGens(gen.IntRange(0, 1<<16), gen.IntRange(0, 1<<16)).Map(
			func(vals []interface{}) [2]int {
				return [2]int{vals[0].(int), vals[1].(int)}
			})),
	))

	properties.Property("AddNode is idempotent on node count", prop.ForAll(
		func(key string, n int) bool {
			g := NewGraph()
			for i := 0; i <= n%8; i++ {
				g.AddNode(model.IdentityKey(key), "gen", float64(i)/8)
			}
			return g.NodeCount() == 1
		},
		gen.AlphaString(),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
