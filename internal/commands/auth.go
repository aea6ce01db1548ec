package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleared-dev/banksync/internal/id"
)

func newTestAuthCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "test-auth [account-id...]",
		Short: "Authenticate configured accounts and cache fresh tokens",
		RunE: withApp(v, func(cmd *cobra.Command, args []string, a *app) error {
			accounts := a.accounts
			if len(args) > 0 {
				accounts = nil
				for _, accountID := range args {
					acct, err := a.account(accountID)
					if err != nil {
						return err
					}
					accounts = append(accounts, acct)
				}
			}
			if len(accounts) == 0 {
				return errors.New("no accounts configured")
			}

			w := cmd.OutOrStdout()
			var failed int
			for _, acct := range accounts {
				if _, err := a.fetcher.Refresh(cmd.Context(), acct); err != nil {
					red.Fprintf(w, "[%s] failed: %v\n", id.Short(acct.AccountID), err)
					failed++
					continue
				}
				green.Fprintf(w, "[%s] ok\n", id.Short(acct.AccountID))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d accounts failed to authenticate", failed, len(accounts))
			}
			return nil
		}),
	}
}
