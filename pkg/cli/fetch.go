package cli

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/fairlens/fairlens/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var (
	fetchRepoFlag = &urfave.StringFlag{
		Name:     "repo",
		Usage:    "GitHub repository holding the dataset (OWNER/REPO)",
		Required: true,
	}

	fetchPathFlag = &urfave.StringFlag{
		Name:     "path",
		Usage:    "Path of the dataset file within the repository",
		Required: true,
	}

	fetchRefFlag = &urfave.StringFlag{
		Name:  "ref",
		Usage: "Git ref to fetch (branch, tag, or commit, default: default branch)",
	}

	fetchOutFlag = &urfave.StringFlag{
		Name:  "out",
		Usage: "Local file to write (default: base name of --path)",
	}

	fetchCmd = &urfave.Command{
		Name:  "fetch",
		Usage: "Download a dataset file from a GitHub repository",
		UsageText: `fairlens fetch --repo propublica/compas-analysis --path compas-scores-two-years.csv
   fairlens fetch --repo acme/datasets --path loans/2024.csv --ref v1.2 --out loans.csv`,
		HideHelpCommand: true,
		Action:          cmdFetchDataset,
		Flags: []urfave.Flag{
			fetchRepoFlag,
			fetchPathFlag,
			fetchRefFlag,
			fetchOutFlag,
		},
	}
)

func cmdFetchDataset(ctx context.Context, cmd *urfave.Command) error {
	repo := cmd.String(fetchRepoFlag.Name)
	fpath := cmd.String(fetchPathFlag.Name)

	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("invalid --repo %q, expected OWNER/REPO", repo)
	}

	dest := cmd.String(fetchOutFlag.Name)
	if dest == "" {
		dest = path.Base(fpath)
	}

	sum, err := data.FetchDataset(ctx, maybeGitHubToken(), owner, name, fpath, cmd.String(fetchRefFlag.Name), dest)
	if err != nil {
		return fmt.Errorf("failed to fetch dataset: %w", err)
	}

	if err := getEncoder().Encode(sum); err != nil {
		return fmt.Errorf("error encoding: %+v: %w", sum, err)
	}

	return nil
}
