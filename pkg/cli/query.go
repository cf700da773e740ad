package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/fairlens/fairlens/pkg/audit"
	urfave "github.com/urfave/cli/v3"
)

const (
	runsQueryLimitDefault = 20
)

var (
	runsLimitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: "Limits number of runs returned",
		Value: runsQueryLimitDefault,
	}

	runIDFlag = &urfave.IntFlag{
		Name:     "id",
		Usage:    "Run ID",
		Required: true,
	}

	datasetsCmd = &urfave.Command{
		Name:    "datasets",
		Aliases: []string{"ds"},
		Usage:   "List dataset operations",
		Commands: []*urfave.Command{
			{
				Name:    "list",
				Usage:   "List stored datasets",
				Aliases: []string{"l"},
				Action:  cmdListDatasets,
			},
			{
				Name:    "breakdown",
				Usage:   "Per-group record counts and rates for a dataset",
				Aliases: []string{"b"},
				Action:  cmdDatasetBreakdown,
				Flags: []urfave.Flag{
					datasetNameFlag,
				},
			},
			{
				Name:    "delete",
				Usage:   "Delete a dataset and its audit history",
				Aliases: []string{"d"},
				Action:  cmdDeleteDataset,
				Flags: []urfave.Flag{
					datasetNameFlag,
				},
			},
		},
	}

	runsCmd = &urfave.Command{
		Name:    "runs",
		Aliases: []string{"r"},
		Usage:   "List audit run operations",
		Commands: []*urfave.Command{
			{
				Name:    "list",
				Usage:   "List recorded audit runs for a dataset, newest first",
				Aliases: []string{"l"},
				Action:  cmdListRuns,
				Flags: []urfave.Flag{
					datasetNameFlag,
					runsLimitFlag,
				},
			},
			{
				Name:    "get",
				Usage:   "Get one recorded audit run with its full report",
				Aliases: []string{"g"},
				Action:  cmdGetRun,
				Flags: []urfave.Flag{
					runIDFlag,
				},
			},
		},
	}
)

// GroupSummary is the serialization-safe projection of group
// statistics: rates whose denominators are empty render as null
// instead of NaN.
type GroupSummary struct {
	Group             string   `json:"group" yaml:"group"`
	Size              int      `json:"size" yaml:"size"`
	PositiveRate      *float64 `json:"positive_rate,omitempty" yaml:"positiveRate,omitempty"`
	BaseRate          *float64 `json:"base_rate,omitempty" yaml:"baseRate,omitempty"`
	FalsePositiveRate *float64 `json:"false_positive_rate,omitempty" yaml:"falsePositiveRate,omitempty"`
	TruePositiveRate  *float64 `json:"true_positive_rate,omitempty" yaml:"truePositiveRate,omitempty"`
	Precision         *float64 `json:"precision,omitempty" yaml:"precision,omitempty"`
	Accuracy          *float64 `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	ScoreMean         *float64 `json:"score_mean,omitempty" yaml:"scoreMean,omitempty"`
	ScoreStdDev       *float64 `json:"score_std_dev,omitempty" yaml:"scoreStdDev,omitempty"`
}

// rate keeps undefined rates out of serialized output.
func rate(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func groupSummaries(stats []*audit.GroupStats) []*GroupSummary {
	out := make([]*GroupSummary, 0, len(stats))
	for _, s := range stats {
		g := &GroupSummary{
			Group:             s.Group,
			Size:              s.Size,
			PositiveRate:      rate(s.PositiveRate()),
			BaseRate:          rate(s.BaseRate()),
			FalsePositiveRate: rate(s.FalsePositiveRate()),
			TruePositiveRate:  rate(s.TruePositiveRate()),
			Precision:         rate(s.Precision()),
			Accuracy:          rate(s.Accuracy()),
		}
		if s.Scored > 0 {
			g.ScoreMean = rate(s.ScoreMean())
			g.ScoreStdDev = rate(s.ScoreStdDev())
		}
		out = append(out, g)
	}
	return out
}

func cmdListDatasets(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	list, err := cfg.Store.ListDatasets()
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}

	if err := getEncoder().Encode(list); err != nil {
		return fmt.Errorf("error encoding list: %+v: %w", list, err)
	}

	return nil
}

func cmdDatasetBreakdown(_ context.Context, cmd *urfave.Command) error {
	name := cmd.String(datasetNameFlag.Name)
	if name == "" {
		return urfave.ShowSubcommandHelp(cmd)
	}

	cfg := getConfig(cmd)

	stats, err := cfg.Store.GroupBreakdown(name)
	if err != nil {
		return fmt.Errorf("failed to get breakdown: %w", err)
	}

	if err := getEncoder().Encode(groupSummaries(stats)); err != nil {
		return fmt.Errorf("error encoding breakdown: %w", err)
	}

	return nil
}

func cmdDeleteDataset(_ context.Context, cmd *urfave.Command) error {
	name := cmd.String(datasetNameFlag.Name)
	if name == "" {
		return urfave.ShowSubcommandHelp(cmd)
	}

	cfg := getConfig(cmd)

	if err := cfg.Store.DeleteDataset(name); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	slog.Info("dataset deleted", "name", name)
	return nil
}

func cmdListRuns(_ context.Context, cmd *urfave.Command) error {
	name := cmd.String(datasetNameFlag.Name)
	if name == "" {
		return urfave.ShowSubcommandHelp(cmd)
	}

	limit := int(cmd.Int(runsLimitFlag.Name))
	if limit < 1 {
		limit = runsQueryLimitDefault
	}

	cfg := getConfig(cmd)

	list, err := cfg.Store.ListRuns(name, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if err := getEncoder().Encode(list); err != nil {
		return fmt.Errorf("error encoding list: %+v: %w", list, err)
	}

	return nil
}

func cmdGetRun(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	run, err := cfg.Store.GetRun(int64(cmd.Int(runIDFlag.Name)))
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	if err := getEncoder().Encode(run); err != nil {
		return fmt.Errorf("error encoding: %+v: %w", run, err)
	}

	return nil
}
