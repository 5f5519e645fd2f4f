package main

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/labinsights/internal/app"
	"github.com/custodia-labs/labinsights/internal/config"
	"github.com/custodia-labs/labinsights/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, nil)
	if err != nil {
		return err
	}
	logger.Info().Str("version", version).Msg("labinsights starting")

	a, err := app.New(cmd.Context(), cfg, logger, version)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}()

	return a.Run(cmd.Context())
}
