package report

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"math"
	"text/template"
	"time"

	"github.com/fairlens/fairlens/pkg/audit"
	"github.com/fairlens/fairlens/pkg/data"
)

const (
	FormatMarkdown = "md"
	FormatText     = "text"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.New("").ParseFS(templateFS, "templates/*.tmpl"))

// Input carries everything one rendering needs: the dataset metadata,
// the per-group tallies, and the evaluated report. All numeric judgment
// happened upstream; rendering only formats.
type Input struct {
	Dataset     *data.Dataset
	Stats       map[string]*audit.GroupStats
	Report      *audit.Report
	GeneratedAt time.Time
}

// Render writes the audit report in the requested format.
func Render(w io.Writer, format string, in *Input) error {
	if in == nil || in.Dataset == nil || in.Report == nil || len(in.Stats) == 0 {
		return errors.New("dataset, stats, and report are required")
	}

	var name string
	switch format {
	case FormatMarkdown:
		name = "report.md.tmpl"
	case FormatText:
		name = "report.txt.tmpl"
	default:
		return fmt.Errorf("unknown report format %q (supported: %s, %s)", format, FormatMarkdown, FormatText)
	}

	if err := tmpl.ExecuteTemplate(w, name, buildView(in)); err != nil {
		return fmt.Errorf("error rendering %s report: %w", format, err)
	}
	return nil
}

type view struct {
	Dataset       string
	Source        string
	Predictor     string
	GeneratedAt   string
	Records       int
	Dropped       int
	Reference     string
	ReferenceRate string
	Verdict       string
	Summary       string
	Groups        []groupRow
	Scores        []scoreRow
	Findings      []findingView
	Overall       overallView
}

type groupRow struct {
	Name         string
	Size         int
	BaseRate     string
	PositiveRate string
	FPR          string
	TPR          string
	Precision    string
}

type scoreRow struct {
	Name   string
	Scored int
	Mean   string
	StdDev string
}

type findingView struct {
	Group         string
	Size          int
	Rows          []metricRow
	FairnessScore string
}

type metricRow struct {
	Metric string
	Value  string
	Limit  string
	Status string
}

type overallView struct {
	Accuracy  string
	Precision string
	Recall    string
	F1        string
}

func buildView(in *Input) *view {
	at := in.GeneratedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	rep := in.Report
	v := &view{
		Dataset:       in.Dataset.Name,
		Source:        in.Dataset.Source,
		Predictor:     in.Dataset.Predictor,
		GeneratedAt:   at.Format(time.RFC3339),
		Records:       in.Dataset.Records,
		Dropped:       in.Dataset.Dropped,
		Reference:     rep.Reference,
		ReferenceRate: pct(rep.ReferenceRate),
		Verdict:       "PASS",
		Summary:       fmt.Sprintf("No policy violations against reference group %s.", rep.Reference),
	}
	if !rep.Passed {
		v.Verdict = "FAIL"
		v.Summary = fmt.Sprintf(
			"%d violation(s) against reference group %s. Review the flagged metrics before relying on this predictor.",
			rep.Violations, rep.Reference)
	}

	for _, name := range audit.GroupNames(in.Stats) {
		g := in.Stats[name]
		label := name
		if name == rep.Reference {
			label += " (reference)"
		}
		v.Groups = append(v.Groups, groupRow{
			Name:         label,
			Size:         g.Size,
			BaseRate:     pct(g.BaseRate()),
			PositiveRate: pct(g.PositiveRate()),
			FPR:          pct(g.FalsePositiveRate()),
			TPR:          pct(g.TruePositiveRate()),
			Precision:    pct(g.Precision()),
		})
		if g.Scored > 0 {
			v.Scores = append(v.Scores, scoreRow{
				Name:   name,
				Scored: g.Scored,
				Mean:   num(g.ScoreMean()),
				StdDev: num(g.ScoreStdDev()),
			})
		}
	}

	p := rep.Policy
	impactLimit := fmt.Sprintf("[%.2f, %.2f]", p.DisparateImpactLow, p.DisparateImpactHigh)
	for _, f := range rep.Findings {
		v.Findings = append(v.Findings, findingView{
			Group:         f.Group,
			Size:          f.Size,
			FairnessScore: measureValue(f.FairnessScore),
			Rows: []metricRow{
				{"Disparate impact", measureValue(f.DisparateImpact), impactLimit, measureStatus(f.DisparateImpact)},
				{"Demographic parity gap", measureValue(f.DemographicParityGap), gapLimit(p.ParityGapMax), measureStatus(f.DemographicParityGap)},
				{"False positive rate gap", measureValue(f.EqualOpportunityGap), gapLimit(p.FPRGapMax), measureStatus(f.EqualOpportunityGap)},
				{"True positive rate gap", measureValue(f.TruePositiveRateGap), gapLimit(p.TPRGapMax), measureStatus(f.TruePositiveRateGap)},
				{"Predictive parity gap", measureValue(f.PredictiveParityGap), gapLimit(p.PrecisionGapMax), measureStatus(f.PredictiveParityGap)},
			},
		})
	}

	o := audit.Overall(in.Stats)
	v.Overall = overallView{
		Accuracy:  pct(o.Accuracy()),
		Precision: pct(o.Precision()),
		Recall:    pct(o.TruePositiveRate()),
		F1:        num(o.F1()),
	}

	return v
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}

func gapLimit(max float64) string {
	return fmt.Sprintf("<= %.3f", max)
}

func measureValue(m audit.Measure) string {
	if !m.Computable {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", m.Value)
}

func measureStatus(m audit.Measure) string {
	switch {
	case !m.Computable:
		return "NOT COMPUTABLE"
	case m.Violation:
		return "VIOLATED"
	default:
		return "ACCEPTABLE"
	}
}
