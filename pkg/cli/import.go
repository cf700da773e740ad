package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairlens/fairlens/pkg/audit"
	"github.com/fairlens/fairlens/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var (
	importFileFlag = &urfave.StringFlag{
		Name:     "file",
		Usage:    "Path to the CSV file to import",
		Required: true,
	}

	datasetNameFlag = &urfave.StringFlag{
		Name:     "name",
		Usage:    "Name of the dataset",
		Required: true,
	}

	groupColumnFlag = &urfave.StringFlag{
		Name:     "group",
		Usage:    "Column holding the protected group attribute (e.g. race, sex)",
		Required: true,
	}

	outcomeColumnFlag = &urfave.StringFlag{
		Name:     "outcome",
		Usage:    "Column holding the actual outcome",
		Required: true,
	}

	predictedColumnFlag = &urfave.StringFlag{
		Name:  "predicted",
		Usage: "Column holding the predicted outcome",
	}

	scoreColumnFlag = &urfave.StringFlag{
		Name:  "score",
		Usage: "Column holding the raw model score (requires --cutoff)",
	}

	scoreCutoffFlag = &urfave.FloatFlag{
		Name:  "cutoff",
		Usage: "Score at or above which the prediction counts as positive",
	}

	positiveValueFlag = &urfave.StringFlag{
		Name:  "positive",
		Usage: "Value treated as the positive class in outcome and predicted columns",
	}

	importCmd = &urfave.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import a CSV dataset of predictions and outcomes",
		UsageText: `fairlens import --file compas.csv --name compas --group race --outcome two_year_recid --score decile_score --cutoff 5
   fairlens import --file loans.csv --name loans --group sex --outcome approved --predicted decision --positive granted`,
		HideHelpCommand: true,
		Action:          cmdImportCSV,
		Flags: []urfave.Flag{
			importFileFlag,
			datasetNameFlag,
			groupColumnFlag,
			outcomeColumnFlag,
			predictedColumnFlag,
			scoreColumnFlag,
			scoreCutoffFlag,
			positiveValueFlag,
		},
	}
)

// ImportResult is the summary printed after a successful import.
type ImportResult struct {
	Dataset  *data.Dataset `json:"dataset" yaml:"dataset"`
	Groups   []string      `json:"groups" yaml:"groups"`
	Duration string        `json:"duration" yaml:"duration"`
}

func cmdImportCSV(_ context.Context, cmd *urfave.Command) error {
	start := time.Now()

	sch := data.Schema{
		GroupColumn:     cmd.String(groupColumnFlag.Name),
		OutcomeColumn:   cmd.String(outcomeColumnFlag.Name),
		PredictedColumn: cmd.String(predictedColumnFlag.Name),
		ScoreColumn:     cmd.String(scoreColumnFlag.Name),
		ScoreCutoff:     cmd.Float(scoreCutoffFlag.Name),
		PositiveValue:   cmd.String(positiveValueFlag.Name),
	}

	file := cmd.String(importFileFlag.Name)
	name := cmd.String(datasetNameFlag.Name)

	recs, sum, err := data.LoadCSV(file, sch)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", file, err)
	}

	if sum.Dropped > 0 {
		slog.Warn("dropped rows with missing or unparseable values", "file", file, "dropped", sum.Dropped)
	}

	// Surface unusable datasets at import time rather than at audit
	// time.
	stats, err := audit.Compute(recs)
	if err != nil {
		return fmt.Errorf("dataset not auditable: %w", err)
	}

	cfg := getConfig(cmd)

	ds := &data.Dataset{
		Name:        name,
		Source:      file,
		GroupAttr:   sch.GroupColumn,
		OutcomeAttr: sch.OutcomeColumn,
		Predictor:   sch.Predictor(),
		RowsSeen:    sum.Rows,
		Dropped:     sum.Dropped,
	}

	if err := cfg.Store.SaveDataset(ds, recs); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	res := &ImportResult{
		Dataset:  ds,
		Groups:   audit.GroupNames(stats),
		Duration: time.Since(start).String(),
	}

	if err := getEncoder().Encode(res); err != nil {
		return fmt.Errorf("error encoding: %+v: %w", res, err)
	}

	return nil
}
