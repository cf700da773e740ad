package audit

import (
	"fmt"
	"math"
)

// Measure is one evaluated metric for one comparison group. When a rate
// feeding the metric had a zero denominator the metric is not
// computable: Computable is false, Value and Violation are meaningless,
// and no violation is counted. That keeps "no disparity" and
// "insufficient data" distinguishable.
type Measure struct {
	Value      float64 `json:"value" yaml:"value"`
	Computable bool    `json:"computable" yaml:"computable"`
	Violation  bool    `json:"violation" yaml:"violation"`
}

// Finding holds every evaluated metric for one comparison group against
// the reference group.
type Finding struct {
	Group                string  `json:"group" yaml:"group"`
	Size                 int     `json:"size" yaml:"size"`
	PositiveRate         float64 `json:"positive_rate" yaml:"positiveRate"`
	DisparateImpact      Measure `json:"disparate_impact" yaml:"disparateImpact"`
	DemographicParityGap Measure `json:"demographic_parity_gap" yaml:"demographicParityGap"`
	EqualOpportunityGap  Measure `json:"equal_opportunity_gap" yaml:"equalOpportunityGap"`
	TruePositiveRateGap  Measure `json:"true_positive_rate_gap" yaml:"truePositiveRateGap"`
	PredictiveParityGap  Measure `json:"predictive_parity_gap" yaml:"predictiveParityGap"`
	FairnessScore        Measure `json:"fairness_score" yaml:"fairnessScore"`
	Violations           int     `json:"violations" yaml:"violations"`
}

// Report is the immutable evaluation result: one Finding per
// non-reference group, ordered by group name, plus the policy the
// evaluation ran under and the aggregate verdict.
type Report struct {
	Reference     string     `json:"reference" yaml:"reference"`
	ReferenceRate float64    `json:"reference_rate" yaml:"referenceRate"`
	Policy        Policy     `json:"policy" yaml:"policy"`
	Findings      []*Finding `json:"findings" yaml:"findings"`
	Violations    int        `json:"violations" yaml:"violations"`
	Passed        bool       `json:"passed" yaml:"passed"`
}

// Evaluate compares every group against the reference group under the
// given policy. Pure and deterministic: same stats, reference and
// policy always produce the same report. A metric whose inputs are
// undefined for one group is marked not computable there while every
// other group still gets a full finding. Returns [ErrValidation] when
// the reference group is absent or fewer than [MinGroups] groups are
// present.
func Evaluate(stats map[string]*GroupStats, reference string, p Policy) (*Report, error) {
	if len(stats) < MinGroups {
		return nil, fmt.Errorf("%w: need at least %d distinct groups, got %d", ErrValidation, MinGroups, len(stats))
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	ref, ok := stats[reference]
	if !ok {
		return nil, fmt.Errorf("%w: reference group %q not present", ErrValidation, reference)
	}

	rep := &Report{
		Reference:     reference,
		ReferenceRate: ref.PositiveRate(),
		Policy:        p,
		Findings:      make([]*Finding, 0, len(stats)-1),
	}

	for _, name := range GroupNames(stats) {
		if name == reference {
			continue
		}
		g := stats[name]

		f := &Finding{
			Group:                name,
			Size:                 g.Size,
			PositiveRate:         g.PositiveRate(),
			DisparateImpact:      impactMeasure(g.PositiveRate(), ref.PositiveRate(), p),
			DemographicParityGap: gapMeasure(g.PositiveRate(), ref.PositiveRate(), p.ParityGapMax),
			EqualOpportunityGap:  gapMeasure(g.FalsePositiveRate(), ref.FalsePositiveRate(), p.FPRGapMax),
			TruePositiveRateGap:  gapMeasure(g.TruePositiveRate(), ref.TruePositiveRate(), p.TPRGapMax),
			PredictiveParityGap:  gapMeasure(g.Precision(), ref.Precision(), p.PrecisionGapMax),
		}
		f.FairnessScore = fairnessScore(f.EqualOpportunityGap, f.DisparateImpact)

		for _, m := range []Measure{
			f.DisparateImpact,
			f.DemographicParityGap,
			f.EqualOpportunityGap,
			f.TruePositiveRateGap,
			f.PredictiveParityGap,
		} {
			if m.Violation {
				f.Violations++
			}
		}
		rep.Violations += f.Violations
		rep.Findings = append(rep.Findings, f)
	}

	rep.Passed = rep.Violations == 0
	return rep, nil
}

// impactMeasure computes the disparate impact ratio rate/refRate. The
// ratio of the reciprocal comparison is its exact inverse. A zero
// reference rate leaves the ratio undefined, reported as not computable
// rather than infinity.
func impactMeasure(rate, refRate float64, p Policy) Measure {
	if math.IsNaN(rate) || math.IsNaN(refRate) || refRate == 0 {
		return Measure{}
	}
	v := rate / refRate
	return Measure{
		Value:      v,
		Computable: true,
		Violation:  v < p.DisparateImpactLow || v > p.DisparateImpactHigh,
	}
}

// gapMeasure computes |rate - refRate| against an absolute ceiling.
func gapMeasure(rate, refRate, max float64) Measure {
	if math.IsNaN(rate) || math.IsNaN(refRate) {
		return Measure{}
	}
	gap := math.Abs(rate - refRate)
	return Measure{
		Value:      gap,
		Computable: true,
		Violation:  gap > max,
	}
}

// fairnessScore is the composite 1 - fprGap - |impact - 1|. Perfectly
// fair treatment scores 1.0; the score degrades with both error-rate
// imbalance and selection-rate imbalance. Never flagged itself, the
// component metrics carry the verdicts.
func fairnessScore(fprGap, impact Measure) Measure {
	if !fprGap.Computable || !impact.Computable {
		return Measure{}
	}
	return Measure{
		Value:      1 - fprGap.Value - math.Abs(impact.Value-1),
		Computable: true,
	}
}
