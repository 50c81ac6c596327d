package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avikko/gsproxy/internal/config"
	"github.com/avikko/gsproxy/internal/factory"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance sweep",
		Long: `sweep removes expired game server credentials (past their expiry plus the
configured leeway) and finished games past their retention, then prints the
removal counts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app, err := factory.New(factory.Config{Config: cfg})
			if err != nil {
				return err
			}

			credentials, games := app.Sweeper.SweepOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d credentials, %d games\n", credentials, games)
			return nil
		},
	}

	return cmd
}
