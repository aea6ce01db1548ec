package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/banksync/internal/config"
	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/store"
)

func newInitCommand() *cobra.Command {
	var apiURL string
	var schedule string
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter banksync.yaml and create the database",
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

			if err := runInit(absDir, apiURL, schedule, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized banksync at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", config.DefaultAPIURL, "payments API base URL")
	cmd.Flags().StringVar(&schedule, "schedule", string(model.ScheduleHourly), "sync schedule: hourly, daily, weekly, monthly")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing banksync.yaml")

	return cmd
}

func runInit(dir, apiURL, schedule string, force bool) error {
	kind, err := model.ParseScheduleKind(schedule)
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(dir, "banksync.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfg := config.Default()
	cfg.API.BaseURL = apiURL
	cfg.Sync.Schedule = string(kind)

	if err := os.MkdirAll(filepath.Join(dir, cfg.Log.SyncLogDir), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	// Opening the store applies the schema.
	s, err := store.Open(filepath.Join(dir, cfg.Database.Path))
	if err != nil {
		return err
	}
	return s.Close()
}
