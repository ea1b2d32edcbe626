package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	tt "github.com/panyam/tracktime"
)

func adminTokenCmd(g *globalFlags) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint a short-lived admin token for the settings endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if cfg.AdminSecret == "" {
				return errors.New("admin secret is not configured (set TRACKTIME_ADMIN_SECRET)")
			}
			tok, err := tt.IssueAdminToken(cfg.AdminSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", tt.DefaultAdminTokenTTL, "Token lifetime")
	return cmd
}
