package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/fairlens/fairlens/pkg/config"
	"github.com/fairlens/fairlens/pkg/data"
	"github.com/fairlens/fairlens/pkg/logging"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "fairlens"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	outputFormat = formatJSON

	debugFlag = &urfave.BoolFlag{
		Name:    "debug",
		Usage:   "Prints verbose logs (optional, default: false)",
		Sources: urfave.EnvVars("FAIRLENS_DEBUG"),
	}

	dbTargetFlag = &urfave.StringFlag{
		Name:    "db",
		Usage:   "Store target: path to the SQLite file or a postgres:// URL",
		Sources: urfave.EnvVars("FAIRLENS_DB"),
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	DBTarget string
	Debug    bool
	Store    *data.Store
}

func getConfig(cmd *urfave.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Audit binary classifier outcomes for fairness across demographic groups",
		Metadata:              map[string]any{},
		Flags: []urfave.Flag{
			debugFlag,
			dbTargetFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			authCmd,
			fetchCmd,
			importCmd,
			auditCmd,
			datasetsCmd,
			runsCmd,
			policyCmd,
			serverCmd,
			resetCmd,
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			if cmd.Bool(debugFlag.Name) {
				logging.SetDefaultCLILogger("debug")
			}

			f := cmd.String(formatFlag.Name)
			if f == formatYAML || f == "yml" {
				outputFormat = formatYAML
			}

			target := cmd.String(dbTargetFlag.Name)
			if target == "" {
				target = path.Join(getHomeDir(), data.DataFileName)
			}

			store, err := data.Open(target)
			if err != nil {
				return ctx, fmt.Errorf("opening store: %w", err)
			}

			cmd.Metadata[appConfigKey] = &appConfig{
				DBTarget: target,
				Debug:    cmd.Bool(debugFlag.Name),
				Store:    store,
			}
			return ctx, nil
		},
		After: func(_ context.Context, cmd *urfave.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.Store != nil {
				cfg.Store.Close()
			}
			return nil
		},
	}
}

// applyFlags re-reads global flags on long-running commands so they
// take effect regardless of where they appear on the command line.
func applyFlags(cmd *urfave.Command) {
	if cmd.Bool(debugFlag.Name) {
		logging.SetDefaultCLILogger("debug")
	}
}

func getHomeDir() string {
	dir, created, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	if created {
		slog.Debug("created home dir", "path", dir)
	}
	return dir
}

type encoder interface {
	Encode(v any) error
}

func getEncoder() encoder {
	if outputFormat == formatYAML {
		return yaml.NewEncoder(os.Stdout)
	}
	e := json.NewEncoder(os.Stdout)
	e.SetIndent("", "  ")
	return e
}
