package main

import (
	"fmt"
	"time"

	"funnel_backend/platform/config"
	"funnel_backend/platform/httpkit"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed admin access token for operators and scripts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		id := uuid.New()
		if subject != "" {
			parsed, err := uuid.Parse(subject)
			if err != nil {
				return fmt.Errorf("invalid --subject: %w", err)
			}
			id = parsed
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		token, err := httpkit.SignAccessToken(cfg.GetJWTAccessSecret(), id, []string{httpkit.RoleAdmin}, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "", "Operator id to embed as the token subject (random when empty)")
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
