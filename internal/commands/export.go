package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleared-dev/banksync/internal/export"
)

func newExportCommand(v *viper.Viper) *cobra.Command {
	var from, to, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write ledger records dated in a range as CSV",
		Args:  cobra.NoArgs,
		RunE: withApp(v, func(cmd *cobra.Command, _ []string, a *app) error {
			fromDate, err := parseBound(from, false)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toDate, err := parseBound(to, false)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			records, err := a.store.ListRecords(cmd.Context(), fromDate, toDate)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			toFile := output != "" && output != "-"
			if toFile {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := export.WriteRecords(w, records); err != nil {
				return err
			}
			if toFile {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records to %s\n", len(records), output)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&from, "from", "", "first record date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last record date, YYYY-MM-DD")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
