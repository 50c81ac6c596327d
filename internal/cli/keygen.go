package cli

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/spf13/cobra"

	"github.com/avikko/gsproxy/internal/config"
	"github.com/avikko/gsproxy/internal/factory"
	"github.com/avikko/gsproxy/internal/model"
)

func newKeygenCmd() *cobra.Command {
	var (
		address   string
		port      int
		expiresAt string
		name      string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Provision a game server credential",
		Long: `keygen signs a bearer token for a game server, stores the token's SHA-256
digest in the credential store, and prints the token to stdout. The raw token
is never stored; this is the only time it is visible.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := netip.ParseAddr(address)
			if err != nil || !addr.Is4() {
				return fmt.Errorf("--address must be an IPv4 address")
			}
			if port < 1 || port > 65535 {
				return fmt.Errorf("--port must be in 1-65535")
			}
			expiry, err := time.Parse(time.RFC3339, expiresAt)
			if err != nil {
				return fmt.Errorf("--expires-at must be RFC 3339, e.g. 2026-01-02T15:04:05Z: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app, err := factory.New(factory.Config{Config: cfg})
			if err != nil {
				return err
			}

			issuedAt := app.Clock.Now()
			signed, digest, err := app.TokenIssuer.Issue(addr, port, issuedAt, expiry)
			if err != nil {
				return err
			}

			cred := &model.Credential{
				GameServerAddress: addr,
				GameServerPort:    port,
				TokenHash:         digest[:],
				CreatedAt:         issuedAt,
				ExpiresAt:         expiry,
				Name:              name,
			}
			if err := app.Storage.SaveCredential(cmd.Context(), cred); err != nil {
				return fmt.Errorf("store credential: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Game server IPv4 address")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Game server port")
	cmd.Flags().StringVarP(&expiresAt, "expires-at", "e", "", "Credential expiry (RFC 3339)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Optional human-readable label")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("port")
	_ = cmd.MarkFlagRequired("expires-at")

	return cmd
}
