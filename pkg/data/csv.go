package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fairlens/fairlens/pkg/audit"
)

// Schema maps source CSV columns onto audit records. GroupColumn and
// OutcomeColumn are always required. Predictions come from
// PredictedColumn when set; otherwise ScoreColumn is required and the
// prediction is derived as score >= ScoreCutoff. When both columns are
// set the prediction is read from PredictedColumn and the raw score is
// carried along for per-group score statistics.
type Schema struct {
	GroupColumn     string  `json:"group_column" yaml:"group_column"`
	OutcomeColumn   string  `json:"outcome_column" yaml:"outcome_column"`
	PredictedColumn string  `json:"predicted_column,omitempty" yaml:"predicted_column,omitempty"`
	ScoreColumn     string  `json:"score_column,omitempty" yaml:"score_column,omitempty"`
	ScoreCutoff     float64 `json:"score_cutoff,omitempty" yaml:"score_cutoff,omitempty"`

	// PositiveValue, when set, is the one string treated as the
	// positive class in the outcome and predicted columns. Without it
	// the columns must hold recognizable binary values (1/0,
	// true/false, yes/no).
	PositiveValue string `json:"positive_value,omitempty" yaml:"positive_value,omitempty"`
}

// Validate checks the schema holds enough to derive labels.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.GroupColumn) == "" {
		return errors.New("group column is required")
	}
	if strings.TrimSpace(s.OutcomeColumn) == "" {
		return errors.New("outcome column is required")
	}
	if s.PredictedColumn == "" && s.ScoreColumn == "" {
		return errors.New("either a predicted column or a score column with a cutoff is required")
	}
	return nil
}

// Predictor describes where predictions came from, recorded as dataset
// metadata.
func (s Schema) Predictor() string {
	if s.PredictedColumn != "" {
		return "column:" + s.PredictedColumn
	}
	return fmt.Sprintf("score:%s>=%v", s.ScoreColumn, s.ScoreCutoff)
}

// LoadSummary describes one CSV ingestion: rows seen, records kept, and
// rows dropped for missing or unparseable required values.
type LoadSummary struct {
	File     string `json:"file" yaml:"file"`
	Rows     int    `json:"rows" yaml:"rows"`
	Imported int    `json:"imported" yaml:"imported"`
	Dropped  int    `json:"dropped" yaml:"dropped"`
}

// LoadCSV parses and cleans a CSV file into audit records per the
// schema. Rows missing a group, outcome, prediction or required score
// are dropped and counted, never silently coerced. Fails when the file
// has no usable records at all.
func LoadCSV(path string, sch Schema) ([]audit.Record, *LoadSummary, error) {
	if err := sch.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid schema: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening dataset file %s: %w", path, err)
	}
	defer f.Close()

	recs, sum, err := parseCSV(f, sch)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	sum.File = path

	slog.Debug("dataset file loaded",
		"file", path,
		"rows", sum.Rows,
		"imported", sum.Imported,
		"dropped", sum.Dropped,
	)

	return recs, sum, nil
}

func parseCSV(r io.Reader, sch Schema) ([]audit.Record, *LoadSummary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}

	gi, ok := cols[sch.GroupColumn]
	if !ok {
		return nil, nil, fmt.Errorf("group column %q not in header", sch.GroupColumn)
	}
	oi, ok := cols[sch.OutcomeColumn]
	if !ok {
		return nil, nil, fmt.Errorf("outcome column %q not in header", sch.OutcomeColumn)
	}

	pi := -1
	if sch.PredictedColumn != "" {
		if pi, ok = cols[sch.PredictedColumn]; !ok {
			return nil, nil, fmt.Errorf("predicted column %q not in header", sch.PredictedColumn)
		}
	}
	si := -1
	if sch.ScoreColumn != "" {
		if si, ok = cols[sch.ScoreColumn]; !ok {
			return nil, nil, fmt.Errorf("score column %q not in header", sch.ScoreColumn)
		}
	}

	sum := &LoadSummary{}
	recs := make([]audit.Record, 0)

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error reading row %d: %w", sum.Rows+1, err)
		}
		sum.Rows++

		rec, ok := rowToRecord(row, sch, gi, oi, pi, si)
		if !ok {
			sum.Dropped++
			continue
		}
		recs = append(recs, rec)
		sum.Imported++
	}

	if sum.Imported == 0 {
		return nil, nil, fmt.Errorf("no usable records (%d rows, %d dropped)", sum.Rows, sum.Dropped)
	}

	return recs, sum, nil
}

func rowToRecord(row []string, sch Schema, gi, oi, pi, si int) (audit.Record, bool) {
	var rec audit.Record

	n := len(row)
	if gi >= n || oi >= n || pi >= n || si >= n {
		return rec, false
	}

	rec.Group = strings.TrimSpace(row[gi])
	if rec.Group == "" {
		return rec, false
	}

	actual, ok := parseLabel(row[oi], sch.PositiveValue)
	if !ok {
		return rec, false
	}
	rec.Actual = actual

	if si >= 0 {
		score, err := strconv.ParseFloat(strings.TrimSpace(row[si]), 64)
		if err == nil {
			rec.Score = score
			rec.HasScore = true
		}
	}

	if pi >= 0 {
		predicted, ok := parseLabel(row[pi], sch.PositiveValue)
		if !ok {
			return rec, false
		}
		rec.Predicted = predicted
		return rec, true
	}

	// Score-derived prediction: the row is unusable without a score.
	if !rec.HasScore {
		return rec, false
	}
	if rec.Score >= sch.ScoreCutoff {
		rec.Predicted = audit.LabelPositive
	} else {
		rec.Predicted = audit.LabelNegative
	}
	return rec, true
}

// parseLabel reads a binary class value. With positive set, that one
// string (case-insensitive) is the positive class and every other
// non-empty value is negative.
func parseLabel(v, positive string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if positive != "" {
		if strings.EqualFold(v, positive) {
			return audit.LabelPositive, true
		}
		return audit.LabelNegative, true
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y":
		return audit.LabelPositive, true
	case "0", "false", "f", "no", "n":
		return audit.LabelNegative, true
	}
	return 0, false
}
