package consensus

import (
	"context"
	"math"
	"strings"

	"github.com/unifydata/unify/internal/core/model"
)

// DefaultStrategies returns the four built-in claim strategies: contact
// fingerprint, device linkage, behavioral similarity, transaction linkage.
func DefaultStrategies() []ClaimStrategy {
	return []ClaimStrategy{
		ContactFingerprintStrategy{},
		DeviceLinkageStrategy{},
		BehaviorSimilarityStrategy{MinSimilarity: 0.75},
		TransactionLinkageStrategy{},
	}
}

// ContactFingerprintStrategy claims identities whose normalized contact
// points (emails lowercased, phones reduced to digits) overlap the subject's.
type ContactFingerprintStrategy struct{}

func (ContactFingerprintStrategy) Name() string { return "contact_fingerprint" }

func (ContactFingerprintStrategy) Claims(_ context.Context, ev model.EvidenceSet) ([]model.IdentityClaim, error) {
	subject := contactFingerprint(ev.Subject)
	if len(subject) == 0 {
		return nil, nil
	}

	var claims []model.IdentityClaim
	for _, rec := range ev.Records {
		points := contactFingerprint(rec)
		if len(points) == 0 {
			continue
		}
		matched := 0
		for p := range points {
			if subject[p] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		claims = append(claims, model.IdentityClaim{
			Identity:     rec.Identity,
			Source:       rec.Source,
			Relationship: model.RelSharesContact,
			Confidence:   float64(matched) / float64(len(points)),
			Validity:     model.TimeRange{From: rec.ObservedFrom, To: rec.ObservedTo},
		})
	}
	return claims, nil
}

func contactFingerprint(rec model.SourceRecord) map[string]bool {
	points := make(map[string]bool, len(rec.Emails)+len(rec.Phones))
	for _, e := range rec.Emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			points["email:"+e] = true
		}
	}
	for _, p := range rec.Phones {
		digits := normalizePhone(p)
		if digits != "" {
			points["phone:"+digits] = true
		}
	}
	return points
}

func normalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DeviceLinkageStrategy claims identities observed on the subject's devices,
// with confidence proportional to the device overlap.
type DeviceLinkageStrategy struct{}

func (DeviceLinkageStrategy) Name() string { return "device_linkage" }

func (DeviceLinkageStrategy) Claims(_ context.Context, ev model.EvidenceSet) ([]model.IdentityClaim, error) {
	subject := stringSet(ev.Subject.Devices)
	if len(subject) == 0 {
		return nil, nil
	}

	var claims []model.IdentityClaim
	for _, rec := range ev.Records {
		if len(rec.Devices) == 0 {
			continue
		}
		matched := 0
		for _, d := range rec.Devices {
			if subject[d] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		claims = append(claims, model.IdentityClaim{
			Identity:     rec.Identity,
			Source:       rec.Source,
			Relationship: model.RelSameDevice,
			Confidence:   float64(matched) / float64(len(rec.Devices)),
			Validity:     model.TimeRange{From: rec.ObservedFrom, To: rec.ObservedTo},
		})
	}
	return claims, nil
}

// BehaviorSimilarityStrategy claims identities whose behavioral fingerprint
// is cosine-similar to the subject's above MinSimilarity. Vectors of unequal
// length are incomparable and skipped.
type BehaviorSimilarityStrategy struct {
	MinSimilarity float64
}

func (BehaviorSimilarityStrategy) Name() string { return "behavior_similarity" }

func (s BehaviorSimilarityStrategy) Claims(_ context.Context, ev model.EvidenceSet) ([]model.IdentityClaim, error) {
	if len(ev.Subject.BehaviorVector) == 0 {
		return nil, nil
	}

	var claims []model.IdentityClaim
	for _, rec := range ev.Records {
		sim, ok := cosine(ev.Subject.BehaviorVector, rec.BehaviorVector)
		if !ok || sim < s.MinSimilarity {
			continue
		}
		claims = append(claims, model.IdentityClaim{
			Identity:     rec.Identity,
			Source:       rec.Source,
			Relationship: model.RelBehaviorMatch,
			Confidence:   math.Min(sim, 1.0),
			Validity:     model.TimeRange{From: rec.ObservedFrom, To: rec.ObservedTo},
		})
	}
	return claims, nil
}

func cosine(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// TransactionLinkageStrategy claims identities that transacted with the
// subject's payment instruments or account handles.
type TransactionLinkageStrategy struct{}

func (TransactionLinkageStrategy) Name() string { return "transaction_linkage" }

func (TransactionLinkageStrategy) Claims(_ context.Context, ev model.EvidenceSet) ([]model.IdentityClaim, error) {
	subject := stringSet(ev.Subject.Instruments)
	if len(subject) == 0 {
		return nil, nil
	}

	var claims []model.IdentityClaim
	for _, rec := range ev.Records {
		if len(rec.Instruments) == 0 {
			continue
		}
		matched := 0
		for _, ins := range rec.Instruments {
			if subject[ins] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		claims = append(claims, model.IdentityClaim{
			Identity:     rec.Identity,
			Source:       rec.Source,
			Relationship: model.RelSharedInstrument,
			Confidence:   float64(matched) / float64(len(rec.Instruments)),
			Validity:     model.TimeRange{From: rec.ObservedFrom, To: rec.ObservedTo},
		})
	}
	return claims, nil
}

func stringSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		if v != "" {
			set[v] = true
		}
	}
	return set
}
