package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "unify/internal/jwt_token"
	"unify/internal/platform/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage reviewer tokens",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		reviewer string
		role     string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint a signed reviewer token",
		RunE: func(_ *cobra.Command, _ []string) error {
			if reviewer == "" {
				return fmt.Errorf("--reviewer is required")
			}
			cfg := config.FromEnv()
			token, err := jwttoken.NewService(cfg.JWTSigningKey, "unify").Generate(reviewer, role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer identity embedded in the token")
	cmd.Flags().StringVar(&role, "role", "reviewer", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}
