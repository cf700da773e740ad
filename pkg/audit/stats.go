package audit

import (
	"math"
	"sort"
)

// OverallGroup names the pooled all-groups aggregate.
const OverallGroup = "overall"

// GroupStats is the confusion tally for one group. Counts only; every
// derived rate is a method so a zero denominator surfaces as NaN
// instead of a stored garbage value. Invariants:
// TP+FP+TN+FN == Size and PredictedPositive == TP+FP.
type GroupStats struct {
	Group             string `json:"group" yaml:"group"`
	Size              int    `json:"size" yaml:"size"`
	TruePositives     int    `json:"true_positives" yaml:"truePositives"`
	FalsePositives    int    `json:"false_positives" yaml:"falsePositives"`
	TrueNegatives     int    `json:"true_negatives" yaml:"trueNegatives"`
	FalseNegatives    int    `json:"false_negatives" yaml:"falseNegatives"`
	PredictedPositive int    `json:"predicted_positive" yaml:"predictedPositive"`
	ActualPositive    int    `json:"actual_positive" yaml:"actualPositive"`
	Scored            int    `json:"scored,omitempty" yaml:"scored,omitempty"`

	// Raw score moments, kept as sums so merges stay associative.
	ScoreSum   float64 `json:"-" yaml:"-"`
	ScoreSumSq float64 `json:"-" yaml:"-"`
}

func (s *GroupStats) add(r Record) {
	s.Size++
	switch {
	case r.Predicted == LabelPositive && r.Actual == LabelPositive:
		s.TruePositives++
	case r.Predicted == LabelPositive && r.Actual == LabelNegative:
		s.FalsePositives++
	case r.Predicted == LabelNegative && r.Actual == LabelNegative:
		s.TrueNegatives++
	default:
		s.FalseNegatives++
	}
	if r.Predicted == LabelPositive {
		s.PredictedPositive++
	}
	if r.Actual == LabelPositive {
		s.ActualPositive++
	}
	if r.HasScore {
		s.Scored++
		s.ScoreSum += r.Score
		s.ScoreSumSq += r.Score * r.Score
	}
}

// Merge folds another tally for the same group into s. Commutative and
// associative, so partial tallies from chunked or sharded aggregation
// combine in any order.
func (s *GroupStats) Merge(o *GroupStats) {
	if o == nil {
		return
	}
	s.Size += o.Size
	s.TruePositives += o.TruePositives
	s.FalsePositives += o.FalsePositives
	s.TrueNegatives += o.TrueNegatives
	s.FalseNegatives += o.FalseNegatives
	s.PredictedPositive += o.PredictedPositive
	s.ActualPositive += o.ActualPositive
	s.Scored += o.Scored
	s.ScoreSum += o.ScoreSum
	s.ScoreSumSq += o.ScoreSumSq
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}

// PositiveRate is the positive classification (selection) rate:
// (TP+FP)/Size.
func (s *GroupStats) PositiveRate() float64 {
	return ratio(s.TruePositives+s.FalsePositives, s.Size)
}

// FalsePositiveRate is FP/(FP+TN). NaN when the group has no
// actual-negative members.
func (s *GroupStats) FalsePositiveRate() float64 {
	return ratio(s.FalsePositives, s.FalsePositives+s.TrueNegatives)
}

// TruePositiveRate (recall) is TP/(TP+FN). NaN when the group has no
// actual-positive members.
func (s *GroupStats) TruePositiveRate() float64 {
	return ratio(s.TruePositives, s.TruePositives+s.FalseNegatives)
}

// TrueNegativeRate is TN/(TN+FP).
func (s *GroupStats) TrueNegativeRate() float64 {
	return ratio(s.TrueNegatives, s.TrueNegatives+s.FalsePositives)
}

// Precision is TP/(TP+FP). NaN when the group has no predicted-positive
// members.
func (s *GroupStats) Precision() float64 {
	return ratio(s.TruePositives, s.TruePositives+s.FalsePositives)
}

// BaseRate is the observed positive outcome rate: ActualPositive/Size.
func (s *GroupStats) BaseRate() float64 {
	return ratio(s.ActualPositive, s.Size)
}

// Accuracy is (TP+TN)/Size.
func (s *GroupStats) Accuracy() float64 {
	return ratio(s.TruePositives+s.TrueNegatives, s.Size)
}

// F1 is the harmonic mean of precision and recall.
func (s *GroupStats) F1() float64 {
	p := s.Precision()
	r := s.TruePositiveRate()
	if math.IsNaN(p) || math.IsNaN(r) || p+r == 0 {
		return math.NaN()
	}
	return 2 * p * r / (p + r)
}

// ScoreMean is the mean raw score over scored records.
func (s *GroupStats) ScoreMean() float64 {
	if s.Scored == 0 {
		return math.NaN()
	}
	return s.ScoreSum / float64(s.Scored)
}

// ScoreStdDev is the population standard deviation of raw scores.
func (s *GroupStats) ScoreStdDev() float64 {
	if s.Scored == 0 {
		return math.NaN()
	}
	mean := s.ScoreSum / float64(s.Scored)
	v := s.ScoreSumSq/float64(s.Scored) - mean*mean
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

// Overall pools every group tally into a single aggregate under
// [OverallGroup], for whole-dataset accuracy, precision, recall and F1.
func Overall(stats map[string]*GroupStats) *GroupStats {
	total := &GroupStats{Group: OverallGroup}
	for _, g := range stats {
		total.Merge(g)
	}
	return total
}

// GroupNames returns the group keys in lexical order for deterministic
// iteration.
func GroupNames(stats map[string]*GroupStats) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
