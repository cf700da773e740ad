package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fairlens/fairlens/pkg/audit"
)

const (
	runListLimitDefault = 20

	insertRunSQL = `INSERT INTO audit_run (
			dataset, reference_group, violations, passed, report, ran_at
		)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	listRunsSQL = `SELECT id, dataset, reference_group, violations, passed, ran_at
		FROM audit_run
		WHERE dataset = ?
		ORDER BY id DESC
		LIMIT ?
	`

	selectRunSQL = `SELECT id, dataset, reference_group, violations, passed, report, ran_at
		FROM audit_run
		WHERE id = ?
	`

	deleteRunsSQL = `DELETE FROM audit_run WHERE dataset = ?`
)

// Run is one recorded audit: which dataset, which reference group, the
// verdict, and (when fetched individually) the full report.
type Run struct {
	ID         int64         `json:"id" yaml:"id"`
	Dataset    string        `json:"dataset" yaml:"dataset"`
	Reference  string        `json:"reference" yaml:"reference"`
	Violations int           `json:"violations" yaml:"violations"`
	Passed     bool          `json:"passed" yaml:"passed"`
	RanAt      string        `json:"ran_at" yaml:"ranAt"`
	Report     *audit.Report `json:"report,omitempty" yaml:"report,omitempty"`
}

// SaveRun records a completed audit for the dataset's history.
func (s *Store) SaveRun(dataset string, rep *audit.Report) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if dataset == "" || rep == nil {
		return nil, errors.New("dataset and report are required")
	}

	b, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report for %s: %w", dataset, err)
	}

	run := &Run{
		Dataset:    dataset,
		Reference:  rep.Reference,
		Violations: rep.Violations,
		Passed:     rep.Passed,
		RanAt:      time.Now().UTC().Format(time.RFC3339),
		Report:     rep,
	}

	if err := s.db.QueryRow(s.bind(insertRunSQL),
		run.Dataset, run.Reference, run.Violations, run.Passed, string(b), run.RanAt,
	).Scan(&run.ID); err != nil {
		return nil, fmt.Errorf("failed to save run for %s: %w", dataset, err)
	}

	return run, nil
}

// ListRuns returns the most recent audit runs for a dataset, newest
// first, without the report payloads.
func (s *Store) ListRuns(dataset string, limit int) ([]*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = runListLimitDefault
	}

	rows, err := s.db.Query(s.bind(listRunsSQL), dataset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for %s: %w", dataset, err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Dataset, &r.Reference, &r.Violations, &r.Passed, &r.RanAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		list = append(list, &r)
	}

	return list, rows.Err()
}

// GetRun returns one recorded audit with its full report.
func (s *Store) GetRun(id int64) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var r Run
	var payload string
	err := s.db.QueryRow(s.bind(selectRunSQL), id).Scan(
		&r.ID, &r.Dataset, &r.Reference, &r.Violations, &r.Passed, &payload, &r.RanAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting run %d: %w", id, err)
	}

	var rep audit.Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return nil, fmt.Errorf("error decoding report for run %d: %w", id, err)
	}
	r.Report = &rep

	return &r, nil
}
