package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fairlens/fairlens/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var resetCmd = &urfave.Command{
	Name:            "reset",
	Usage:           "Delete all imported data and start fresh",
	HideHelpCommand: true,
	Action:          cmdReset,
}

func cmdReset(_ context.Context, cmd *urfave.Command) error {
	applyFlags(cmd)
	cfg := getConfig(cmd)

	if data.IsPostgresTarget(cfg.DBTarget) {
		return fmt.Errorf("reset only supports local SQLite stores, not %s", cfg.DBTarget)
	}

	fmt.Printf("This will permanently delete all data in %s\n", cfg.DBTarget)
	fmt.Print("Are you sure? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if strings.ToLower(strings.TrimSpace(answer)) != "y" {
		fmt.Println("Aborted.")
		return nil
	}

	// close the store before deleting the file
	if cfg.Store != nil {
		cfg.Store.Close()
		cfg.Store = nil
	}

	if err := os.Remove(cfg.DBTarget); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting database: %w", err)
	}

	slog.Info("database deleted", "path", cfg.DBTarget)

	// re-initialize an empty store
	store, err := data.Open(cfg.DBTarget)
	if err != nil {
		return fmt.Errorf("re-initializing database: %w", err)
	}
	cfg.Store = store

	slog.Info("database re-initialized", "path", cfg.DBTarget)
	fmt.Println("Reset complete.")
	return nil
}
