package audit

import (
	"errors"
	"fmt"
	"strings"
)

// Label values for predicted and actual outcomes. Positive is the
// adverse or selected class (e.g. flagged high-risk), negative is
// everything else. Any other value is a validation failure, never a
// silent coercion.
const (
	LabelNegative = 0
	LabelPositive = 1
)

// ErrValidation is the root of all input validation failures: empty
// datasets, non-binary labels, missing group values, or fewer than two
// distinct groups. Callers check with errors.Is.
var ErrValidation = errors.New("invalid dataset")

// Record is a single classified subject: the model's predicted label,
// the observed outcome, and the protected-attribute group the subject
// belongs to. Score carries the raw model score when the source data
// had one (HasScore guards it).
type Record struct {
	Predicted int     `json:"predicted" yaml:"predicted"`
	Actual    int     `json:"actual" yaml:"actual"`
	Group     string  `json:"group" yaml:"group"`
	Score     float64 `json:"score,omitempty" yaml:"score,omitempty"`
	HasScore  bool    `json:"has_score,omitempty" yaml:"hasScore,omitempty"`
}

func validLabel(v int) bool {
	return v == LabelNegative || v == LabelPositive
}

func (r Record) validate(idx int) error {
	if !validLabel(r.Predicted) {
		return fmt.Errorf("%w: record %d has non-binary predicted label %d", ErrValidation, idx, r.Predicted)
	}
	if !validLabel(r.Actual) {
		return fmt.Errorf("%w: record %d has non-binary actual label %d", ErrValidation, idx, r.Actual)
	}
	if strings.TrimSpace(r.Group) == "" {
		return fmt.Errorf("%w: record %d has no group value", ErrValidation, idx)
	}
	return nil
}
