package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/malwarebo/invoicer/security"
)

var (
	tokenSubject string
	tokenEmail   string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Mint a bearer token for the /api/v1 endpoints",
	Example: `  invoicer token --subject ops@example.com --ttl 24h`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenSubject == "" {
			return errors.New("--subject is required")
		}
		if tokenTTL <= 0 {
			return errors.New("--ttl must be positive")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Security.Validate(cfg.IsProduction()); err != nil {
			return fmt.Errorf("security config: %w", err)
		}

		manager := security.CreateJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTAudience)
		token, err := manager.GenerateToken(tokenSubject, tokenEmail, tokenTTL)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject, usually the operator's id or email")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
