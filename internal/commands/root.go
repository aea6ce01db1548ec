package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleared-dev/banksync/internal/buildinfo"
)

// Persistent flag names. Each can also be set through BANKSYNC_<NAME>, with
// dashes replaced by underscores.
const (
	flagConfig   = "config"
	flagDB       = "db"
	flagLogLevel = "log-level"
	flagLogJSON  = "log-json"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BANKSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:     "banksync",
		Short:   "Incremental bank transaction sync",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(flagConfig, "banksync.yaml", "path to banksync.yaml")
	flags.String(flagDB, "", "database path (overrides database.path)")
	flags.String(flagLogLevel, "", "log level: debug, info, warn, error (overrides log.level)")
	flags.Bool(flagLogJSON, false, "write JSON logs instead of console output")
	_ = v.BindPFlags(flags)

	rootCmd.AddCommand(
		newInitCommand(),
		newSyncCommand(v),
		newTickCommand(v),
		newStopCommand(v),
		newStatusCommand(v),
		newResetCommand(v),
		newTestAuthCommand(v),
		newExportCommand(v),
	)

	return rootCmd
}
