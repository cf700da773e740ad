package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/fairlens/fairlens/pkg/audit"
	"github.com/fairlens/fairlens/pkg/config"
	"github.com/fairlens/fairlens/pkg/data"
	"github.com/fairlens/fairlens/pkg/report"
	urfave "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var (
	referenceFlag = &urfave.StringSliceFlag{
		Name:    "reference",
		Aliases: []string{"ref"},
		Usage:   "Reference group to compare against (repeatable, default: largest group)",
	}

	policyFileFlag = &urfave.StringFlag{
		Name:  "policy",
		Usage: "Path to a policy file with fairness thresholds (default: built-in thresholds)",
	}

	reportFormatFlag = &urfave.StringFlag{
		Name:  "report",
		Usage: fmt.Sprintf("Render a report instead of raw results [%s, %s]", report.FormatMarkdown, report.FormatText),
	}

	reportOutFlag = &urfave.StringFlag{
		Name:  "out",
		Usage: "File to write the rendered report to (default: stdout)",
	}

	auditCmd = &urfave.Command{
		Name:    "audit",
		Aliases: []string{"a"},
		Usage:   "Audit a stored dataset for fairness across its groups",
		UsageText: `fairlens audit --name compas                                # against the largest group
   fairlens audit --name compas --reference Caucasian          # explicit reference
   fairlens audit --name compas --ref groupA --ref groupB      # one audit per reference
   fairlens audit --name compas --report md --out audit.md     # rendered report`,
		HideHelpCommand: true,
		Action:          cmdRunAudit,
		Flags: []urfave.Flag{
			datasetNameFlag,
			referenceFlag,
			policyFileFlag,
			reportFormatFlag,
			reportOutFlag,
		},
	}
)

// AuditResult is the summary printed after one audit command: one
// recorded run per reference group.
type AuditResult struct {
	Dataset  string       `json:"dataset" yaml:"dataset"`
	Policy   audit.Policy `json:"policy" yaml:"policy"`
	Runs     []*data.Run  `json:"runs" yaml:"runs"`
	Duration string       `json:"duration" yaml:"duration"`
}

func cmdRunAudit(_ context.Context, cmd *urfave.Command) error {
	start := time.Now()
	name := cmd.String(datasetNameFlag.Name)

	cfg := getConfig(cmd)

	ds, err := cfg.Store.GetDataset(name)
	if err != nil {
		return fmt.Errorf("failed to get dataset: %w", err)
	}

	recs, err := cfg.Store.Records(name)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	stats, err := audit.ComputeConcurrent(recs, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to compute group statistics: %w", err)
	}

	pol := audit.DefaultPolicy()
	if pf := cmd.String(policyFileFlag.Name); pf != "" {
		if pol, err = config.ReadPolicy(pf); err != nil {
			return fmt.Errorf("failed to read policy: %w", err)
		}
	}

	refs := cmd.StringSlice(referenceFlag.Name)
	if len(refs) == 0 {
		ref := largestGroup(stats)
		slog.Debug("no reference group given, using largest", "reference", ref)
		refs = []string{ref}
	}

	reports := make([]*audit.Report, len(refs))
	var g errgroup.Group
	for i, ref := range refs {
		g.Go(func() error {
			rep, err := audit.Evaluate(stats, ref, pol)
			if err != nil {
				return fmt.Errorf("failed to evaluate against %q: %w", ref, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	runs := make([]*data.Run, 0, len(reports))
	for _, rep := range reports {
		run, err := cfg.Store.SaveRun(ds.Name, rep)
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		runs = append(runs, run)
	}

	if rf := cmd.String(reportFormatFlag.Name); rf != "" {
		return renderRunReport(cmd, ds, stats, runs, rf)
	}

	res := &AuditResult{
		Dataset:  ds.Name,
		Policy:   pol,
		Runs:     runs,
		Duration: time.Since(start).String(),
	}

	if err := getEncoder().Encode(res); err != nil {
		return fmt.Errorf("error encoding: %+v: %w", res, err)
	}

	return nil
}

func renderRunReport(cmd *urfave.Command, ds *data.Dataset, stats map[string]*audit.GroupStats, runs []*data.Run, format string) error {
	if len(runs) != 1 {
		return fmt.Errorf("rendered reports cover a single reference group, got %d", len(runs))
	}

	out := os.Stdout
	if fp := cmd.String(reportOutFlag.Name); fp != "" {
		f, err := os.Create(fp)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", fp, err)
		}
		defer f.Close()
		out = f
	}

	in := &report.Input{
		Dataset:     ds,
		Stats:       stats,
		Report:      runs[0].Report,
		GeneratedAt: time.Now().UTC(),
	}
	if err := report.Render(out, format, in); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// largestGroup picks the biggest group as the default reference, first
// name in sorted order on ties.
func largestGroup(stats map[string]*audit.GroupStats) string {
	var ref string
	maxSize := -1
	for _, name := range audit.GroupNames(stats) {
		if s := stats[name]; s.Size > maxSize {
			ref = name
			maxSize = s.Size
		}
	}
	return ref
}
