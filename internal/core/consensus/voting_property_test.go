package consensus

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/unifydata/unify/internal/core/model"
)

func genClaims() gopter.Gen {
	identities := gen.OneConstOf(
		model.IdentityKey("a"), model.IdentityKey("b"), model.IdentityKey("c"))
	sources := gen.OneConstOf(
		model.SourceTag("crm"), model.SourceTag("web"), model.SourceTag("pos"))
	single := gopter.CombineGens(identities, sources, gen.Float64Range(0, 1)).Map(
		func(vals []interface{}) model.IdentityClaim {
			return model.IdentityClaim{
				Identity:     vals[0].(model.IdentityKey),
				Source:       vals[1].(model.SourceTag),
				Relationship: model.RelSharesContact,
				Confidence:   vals[2].(float64),
			}
		})
	return gen.SliceOf(single)
}

func TestVotingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("identical claims always produce the same winner", prop.ForAll(
		func(claims []model.IdentityClaim) bool {
			if len(claims) == 0 {
				return true
			}
			strategies := []ClaimStrategy{stubStrategy{name: "s1", claims: claims}}
			first, err := NewResolver(strategies).Resolve(context.Background(), "init", model.EvidenceSet{})
			if err != nil {
				return false
			}
			for i := 0; i < 5; i++ {
				res, err := NewResolver(strategies).Resolve(context.Background(), "init", model.EvidenceSet{})
				if err != nil || res.MasterIdentity != first.MasterIdentity ||
					res.OverallConfidence != first.OverallConfidence {
					return false
				}
			}
			return true
		},
		genClaims(),
	))

	properties.Property("adding a positive claim never decreases that identity's vote", prop.ForAll(
		func(claims []model.IdentityClaim, extra float64) bool {
			r := NewResolver([]ClaimStrategy{stubStrategy{name: "s1"}})
			before := r.tally([][]model.IdentityClaim{claims})
			withExtra := append(append([]model.IdentityClaim{}, claims...), model.IdentityClaim{
				Identity:   "a",
				Source:     "crm",
				Confidence: extra,
			})
			after := r.tally([][]model.IdentityClaim{withExtra})
			return after["a"].Score >= before["a"].Score
		},
		genClaims(),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
