package audit

import (
	"errors"
	"fmt"
)

const (
	// Four-fifths rule window for the disparate impact ratio.
	DisparateImpactLowDefault  = 0.80
	DisparateImpactHighDefault = 1.25

	// Absolute ceiling shared by the rate-gap metrics.
	GapMaxDefault = 0.10
)

// Policy is the named threshold configuration one evaluation runs
// under. There are no package-level defaults to mutate: every call to
// [Evaluate] carries its own Policy, so concurrent audits can use
// different thresholds without interference.
type Policy struct {
	DisparateImpactLow  float64 `json:"disparate_impact_low" yaml:"disparate_impact_low"`
	DisparateImpactHigh float64 `json:"disparate_impact_high" yaml:"disparate_impact_high"`
	ParityGapMax        float64 `json:"parity_gap_max" yaml:"parity_gap_max"`
	FPRGapMax           float64 `json:"fpr_gap_max" yaml:"fpr_gap_max"`
	TPRGapMax           float64 `json:"tpr_gap_max" yaml:"tpr_gap_max"`
	PrecisionGapMax     float64 `json:"precision_gap_max" yaml:"precision_gap_max"`
}

// DefaultPolicy returns the standard thresholds: the [0.80, 1.25]
// disparate impact window and a 0.10 ceiling on every rate gap.
func DefaultPolicy() Policy {
	return Policy{
		DisparateImpactLow:  DisparateImpactLowDefault,
		DisparateImpactHigh: DisparateImpactHighDefault,
		ParityGapMax:        GapMaxDefault,
		FPRGapMax:           GapMaxDefault,
		TPRGapMax:           GapMaxDefault,
		PrecisionGapMax:     GapMaxDefault,
	}
}

// Validate rejects thresholds that cannot express a sane policy.
func (p Policy) Validate() error {
	if p.DisparateImpactLow <= 0 {
		return errors.New("disparate impact low bound must be positive")
	}
	if p.DisparateImpactHigh <= p.DisparateImpactLow {
		return fmt.Errorf("disparate impact high bound %.2f must exceed low bound %.2f",
			p.DisparateImpactHigh, p.DisparateImpactLow)
	}
	for _, g := range []struct {
		name string
		max  float64
	}{
		{"parity", p.ParityGapMax},
		{"false positive rate", p.FPRGapMax},
		{"true positive rate", p.TPRGapMax},
		{"precision", p.PrecisionGapMax},
	} {
		if g.max <= 0 || g.max > 1 {
			return fmt.Errorf("%s gap ceiling %.2f must be in (0, 1]", g.name, g.max)
		}
	}
	return nil
}
