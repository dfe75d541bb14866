package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"messaging-platform/internal/auth"
	"messaging-platform/internal/config"
	"messaging-platform/internal/rbac"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Agent token commands",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var userID, tenantID, role string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access/refresh token pair for an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || tenantID == "" {
				return fmt.Errorf("--user and --tenant are required")
			}
			if !rbac.Valid(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}
			pair, err := m.IssuePair(time.Now(), userID, tenantID, role)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "access_token=%s\n", pair.AccessToken)
			fmt.Fprintf(out, "refresh_token=%s\n", pair.RefreshToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "agent user id")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&role, "role", rbac.RoleAgent, "role: owner, agent, analyst, super_admin")
	return cmd
}
