package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/config"
	"github.com/cleared-dev/freightbooks/internal/feed"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new set of books",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, opts, absDir, name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "company name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runInit(cmd *cobra.Command, opts *globalOptions, dir, name string) error {
	for _, d := range []string{"", "logs", feed.ImportDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Join(dir, d), err)
		}
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	cfg := config.Default(name)
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	a, err := newApp(cmd, opts, cfg, path)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := a.context(cmd)

	created, err := a.accounts.Seed(ctx, accounts.DefaultChart())
	if err != nil {
		return fmt.Errorf("seeding chart of accounts: %w", err)
	}
	fy, err := a.years.EnsureCurrentYearExists(ctx)
	if err != nil {
		return err
	}
	if err := a.engine.CheckRules(ctx); err != nil {
		return fmt.Errorf("posting rules: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized books for %s at %s (%d accounts, fiscal year %d)\n", name, dir, created, fy.Year)
	return nil
}
