package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairlens/fairlens/pkg/audit"
)

const (
	saveLogEvery = 5000

	upsertDatasetSQL = `INSERT INTO dataset (
			name, source, group_attr, outcome_attr, predictor,
			rows_seen, records, dropped, imported_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			source = excluded.source,
			group_attr = excluded.group_attr,
			outcome_attr = excluded.outcome_attr,
			predictor = excluded.predictor,
			rows_seen = excluded.rows_seen,
			records = excluded.records,
			dropped = excluded.dropped,
			imported_at = excluded.imported_at
	`

	insertRecordSQL = `INSERT INTO record (
			dataset, idx, predicted, actual, group_name, score
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	deleteRecordsSQL = `DELETE FROM record WHERE dataset = ?`

	selectRecordsSQL = `SELECT predicted, actual, group_name, score
		FROM record
		WHERE dataset = ?
		ORDER BY idx
	`

	selectDatasetSQL = `SELECT name, source, group_attr, outcome_attr, predictor,
			rows_seen, records, dropped, imported_at
		FROM dataset
		WHERE name = ?
	`

	listDatasetsSQL = `SELECT name, source, group_attr, outcome_attr, predictor,
			rows_seen, records, dropped, imported_at
		FROM dataset
		ORDER BY name
	`

	deleteDatasetSQL = `DELETE FROM dataset WHERE name = ?`

	groupBreakdownSQL = `SELECT group_name,
			COUNT(*),
			SUM(CASE WHEN predicted = 1 AND actual = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN predicted = 1 AND actual = 0 THEN 1 ELSE 0 END),
			SUM(CASE WHEN predicted = 0 AND actual = 0 THEN 1 ELSE 0 END),
			SUM(CASE WHEN predicted = 0 AND actual = 1 THEN 1 ELSE 0 END),
			SUM(predicted),
			SUM(actual),
			COUNT(score),
			COALESCE(SUM(score), 0),
			COALESCE(SUM(score * score), 0)
		FROM record
		WHERE dataset = ?
		GROUP BY group_name
		ORDER BY COUNT(*) DESC, group_name
	`
)

// ErrNotFound marks lookups for datasets or runs that are not in the
// store. Callers check with errors.Is.
var ErrNotFound = errors.New("not found")

// Dataset is the stored metadata for one imported dataset.
type Dataset struct {
	Name        string `json:"name" yaml:"name"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
	GroupAttr   string `json:"group_attr" yaml:"groupAttr"`
	OutcomeAttr string `json:"outcome_attr" yaml:"outcomeAttr"`
	Predictor   string `json:"predictor" yaml:"predictor"`
	RowsSeen    int    `json:"rows_seen" yaml:"rowsSeen"`
	Records     int    `json:"records" yaml:"records"`
	Dropped     int    `json:"dropped" yaml:"dropped"`
	ImportedAt  string `json:"imported_at" yaml:"importedAt"`
}

// SaveDataset stores the metadata and records for one dataset in a
// single transaction, replacing any previous import under the same
// name.
func (s *Store) SaveDataset(d *Dataset, recs []audit.Record) error {
	if err := s.ready(); err != nil {
		return err
	}
	if d == nil || d.Name == "" {
		return errors.New("dataset name is required")
	}
	if len(recs) == 0 {
		return errors.New("dataset has no records")
	}

	d.Records = len(recs)
	if d.ImportedAt == "" {
		d.ImportedAt = time.Now().UTC().Format(time.RFC3339)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting dataset tx: %w", err)
	}

	if _, err := tx.Exec(s.bind(upsertDatasetSQL),
		d.Name, d.Source, d.GroupAttr, d.OutcomeAttr, d.Predictor,
		d.RowsSeen, d.Records, d.Dropped, d.ImportedAt,
	); err != nil {
		rollback(tx)
		return fmt.Errorf("error saving dataset %s: %w", d.Name, err)
	}

	if _, err := tx.Exec(s.bind(deleteRecordsSQL), d.Name); err != nil {
		rollback(tx)
		return fmt.Errorf("error clearing records for %s: %w", d.Name, err)
	}

	stmt, err := tx.Prepare(s.bind(insertRecordSQL))
	if err != nil {
		rollback(tx)
		return fmt.Errorf("error preparing record insert: %w", err)
	}

	for i, r := range recs {
		var score any
		if r.HasScore {
			score = r.Score
		}
		if _, err := stmt.Exec(d.Name, i, r.Predicted, r.Actual, r.Group, score); err != nil {
			rollback(tx)
			return fmt.Errorf("error saving record %d for %s: %w", i, d.Name, err)
		}
		if (i+1)%saveLogEvery == 0 {
			slog.Debug("save progress", "dataset", d.Name, "saved", i+1, "total", len(recs))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing dataset %s: %w", d.Name, err)
	}

	slog.Info("dataset saved", "name", d.Name, "records", d.Records, "dropped", d.Dropped)

	return nil
}

// GetDataset returns the stored metadata for one dataset.
func (s *Store) GetDataset(name string) (*Dataset, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var d Dataset
	err := s.db.QueryRow(s.bind(selectDatasetSQL), name).Scan(
		&d.Name, &d.Source, &d.GroupAttr, &d.OutcomeAttr, &d.Predictor,
		&d.RowsSeen, &d.Records, &d.Dropped, &d.ImportedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dataset %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting dataset %s: %w", name, err)
	}
	return &d, nil
}

// ListDatasets returns metadata for every stored dataset.
func (s *Store) ListDatasets() ([]*Dataset, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(listDatasetsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	list := make([]*Dataset, 0)
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(
			&d.Name, &d.Source, &d.GroupAttr, &d.OutcomeAttr, &d.Predictor,
			&d.RowsSeen, &d.Records, &d.Dropped, &d.ImportedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		list = append(list, &d)
	}

	return list, rows.Err()
}

// Records materializes the stored records for one dataset in import
// order, ready to hand to the audit engine.
func (s *Store) Records(name string) ([]audit.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	d, err := s.GetDataset(name)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(s.bind(selectRecordsSQL), name)
	if err != nil {
		return nil, fmt.Errorf("failed to query records for %s: %w", name, err)
	}
	defer rows.Close()

	recs := make([]audit.Record, 0, d.Records)
	for rows.Next() {
		var r audit.Record
		var score sql.NullFloat64
		if err := rows.Scan(&r.Predicted, &r.Actual, &r.Group, &score); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		if score.Valid {
			r.Score = score.Float64
			r.HasScore = true
		}
		recs = append(recs, r)
	}

	return recs, rows.Err()
}

// DeleteDataset removes a dataset, its records, and its audit history.
func (s *Store) DeleteDataset(name string) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting delete tx: %w", err)
	}

	if _, err := tx.Exec(s.bind(deleteRecordsSQL), name); err != nil {
		rollback(tx)
		return fmt.Errorf("error deleting records for %s: %w", name, err)
	}
	if _, err := tx.Exec(s.bind(deleteRunsSQL), name); err != nil {
		rollback(tx)
		return fmt.Errorf("error deleting runs for %s: %w", name, err)
	}

	res, err := tx.Exec(s.bind(deleteDatasetSQL), name)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("error deleting dataset %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		rollback(tx)
		return fmt.Errorf("error checking delete result for %s: %w", name, err)
	}
	if n == 0 {
		rollback(tx)
		return fmt.Errorf("%w: dataset %q", ErrNotFound, name)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing delete for %s: %w", name, err)
	}

	slog.Info("dataset deleted", "name", name)

	return nil
}

// GroupBreakdown aggregates the stored records into per-group confusion
// tallies in SQL, largest group first. The result matches what the
// audit engine computes from the same records.
func (s *Store) GroupBreakdown(name string) ([]*audit.GroupStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if _, err := s.GetDataset(name); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(s.bind(groupBreakdownSQL), name)
	if err != nil {
		return nil, fmt.Errorf("failed to query group breakdown for %s: %w", name, err)
	}
	defer rows.Close()

	list := make([]*audit.GroupStats, 0)
	for rows.Next() {
		var g audit.GroupStats
		if err := rows.Scan(
			&g.Group, &g.Size,
			&g.TruePositives, &g.FalsePositives, &g.TrueNegatives, &g.FalseNegatives,
			&g.PredictedPositive, &g.ActualPositive,
			&g.Scored, &g.ScoreSum, &g.ScoreSumSq,
		); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown row: %w", err)
		}
		list = append(list, &g)
	}

	return list, rows.Err()
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("error rolling back transaction", "error", err)
	}
}
