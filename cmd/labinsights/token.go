package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/labinsights/internal/adapters/driven/auth"
	"github.com/custodia-labs/labinsights/internal/config"
	"github.com/custodia-labs/labinsights/internal/core/domain"
)

var tokenOpts struct {
	subject string
	email   string
	name    string
	ttl     time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token signed with the configured JWT secret",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not configured")
		}

		subject := tokenOpts.subject
		if subject == "" {
			subject = uuid.NewString()
		}

		now := time.Now()
		token, err := auth.NewAdapter(cfg.Auth.JWTSecret).GenerateToken(&domain.TokenClaims{
			Subject:   subject,
			Email:     tokenOpts.email,
			Name:      tokenOpts.name,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(tokenOpts.ttl).Unix(),
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOpts.subject, "sub", "", "user id (random uuid when empty)")
	tokenCmd.Flags().StringVar(&tokenOpts.email, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenOpts.name, "name", "", "name claim")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
