package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fairlens/fairlens/pkg/audit"
	"github.com/fairlens/fairlens/pkg/config"
	urfave "github.com/urfave/cli/v3"
)

var (
	policyPathFlag = &urfave.StringFlag{
		Name:  "file",
		Usage: "Path to the policy file (default: policy.yaml under the app home dir)",
	}

	policyCmd = &urfave.Command{
		Name:            "policy",
		Usage:           "Manage fairness policy thresholds",
		HideHelpCommand: true,
		Commands: []*urfave.Command{
			{
				Name:   "init",
				Usage:  "Write a policy file with the default thresholds",
				Action: cmdInitPolicy,
				Flags: []urfave.Flag{
					policyPathFlag,
				},
			},
			{
				Name:   "show",
				Usage:  "Show the policy thresholds an audit would run under",
				Action: cmdShowPolicy,
				Flags: []urfave.Flag{
					policyPathFlag,
				},
			},
		},
	}
)

func policyPath(cmd *urfave.Command) string {
	if fp := cmd.String(policyPathFlag.Name); fp != "" {
		return fp
	}
	return filepath.Join(getHomeDir(), config.PolicyFileName)
}

func cmdInitPolicy(_ context.Context, cmd *urfave.Command) error {
	fp := policyPath(cmd)

	if _, err := os.Stat(fp); err == nil {
		return fmt.Errorf("policy file already exists: %s", fp)
	}

	if err := config.SavePolicy(fp, audit.DefaultPolicy()); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}

	slog.Info("policy written", "path", fp)
	return getEncoder().Encode(audit.DefaultPolicy())
}

func cmdShowPolicy(_ context.Context, cmd *urfave.Command) error {
	pol, err := config.ReadPolicy(policyPath(cmd))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read policy: %w", err)
		}
		pol = audit.DefaultPolicy()
	}

	return getEncoder().Encode(pol)
}
