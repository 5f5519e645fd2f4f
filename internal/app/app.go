// Package app wires configuration into adapters and services.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/adapters/driven/agents"
	"github.com/custodia-labs/labinsights/internal/adapters/driven/auth"
	"github.com/custodia-labs/labinsights/internal/adapters/driven/azcred"
	"github.com/custodia-labs/labinsights/internal/adapters/driven/azureblob"
	"github.com/custodia-labs/labinsights/internal/adapters/driven/docintel"
	"github.com/custodia-labs/labinsights/internal/adapters/driven/memory"
	"github.com/custodia-labs/labinsights/internal/adapters/driven/minio"
	"github.com/custodia-labs/labinsights/internal/adapters/driven/pdftext"
	"github.com/custodia-labs/labinsights/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/labinsights/internal/adapters/driven/redis"
	httpadapter "github.com/custodia-labs/labinsights/internal/adapters/driving/http"
	"github.com/custodia-labs/labinsights/internal/config"
	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
	"github.com/custodia-labs/labinsights/internal/core/services"
)

// App is a fully wired service
type App struct {
	Server  *httpadapter.Server
	closers []func() error
}

// New validates cfg and builds every adapter and service it selects.
// Remote stores are connected eagerly so misconfiguration fails at startup.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, version string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{}
	httpClient := &http.Client{Timeout: 60 * time.Second}

	signer, err := newSigner(ctx, cfg.Storage, &logger)
	if err != nil {
		return nil, err
	}

	extractor, err := newExtractor(cfg.Extraction, httpClient, &logger)
	if err != nil {
		return nil, err
	}

	agent, err := agents.NewFactory(httpClient, &logger).CreateAgentClient(&agents.Settings{
		Provider:     cfg.Agent.Provider,
		Endpoint:     cfg.Agent.Endpoint,
		AgentID:      cfg.Agent.AgentID,
		APIVersion:   cfg.Agent.APIVersion,
		Token:        cfg.Agent.Token,
		PollInterval: cfg.Agent.PollInterval,
		BaseURL:      cfg.Agent.BaseURL,
		APIKey:       cfg.Agent.APIKey,
		Model:        cfg.Agent.Model,
		Instructions: cfg.Agent.Instructions,
	})
	if err != nil {
		return nil, err
	}

	store, err := a.newThreadStore(ctx, cfg.Threads)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	threads := services.NewThreadRegistry(agent, store, &logger)
	analysis, err := services.NewAnalysisService(services.AnalysisConfig{
		Agent:        agent,
		Threads:      threads,
		Mode:         domain.OutputMode(cfg.Analysis.Mode),
		OnRunFailure: domain.FailurePolicy(cfg.Analysis.OnRunFailure),
		Logger:       &logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	reports := services.NewReportService(services.ReportServiceConfig{
		Issuer:           services.NewCredentialIssuer(services.CredentialIssuerConfig{Signer: signer, Logger: &logger}),
		Extraction:       services.NewExtractionService(extractor, &logger),
		Analysis:         analysis,
		ReadGrantMinutes: cfg.Server.ReadGrantMinutes,
		Logger:           &logger,
	})
	chat := services.NewChatService(agent, threads, &logger)
	authService := services.NewAuthService(auth.NewAdapter(cfg.Auth.JWTSecret))

	checks := map[string]httpadapter.Pinger{}
	if p, ok := store.(httpadapter.Pinger); ok {
		checks["threads"] = p
	}

	a.Server = httpadapter.NewServer(httpadapter.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         &logger,
	}, authService, reports, chat, checks)

	logger.Info().
		Str("storage", cfg.Storage.Provider).
		Str("extraction", extractor.Name()).
		Str("agent", cfg.Agent.Provider).
		Str("threads", cfg.Threads.Store).
		Str("mode", cfg.Analysis.Mode).
		Str("on_run_failure", cfg.Analysis.OnRunFailure).
		Msg("service configured")

	return a, nil
}

// Run serves HTTP until ctx is cancelled or a shutdown signal arrives
func (a *App) Run(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases store connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newSigner(ctx context.Context, cfg config.StorageConfig, logger *zerolog.Logger) (driven.BlobSigner, error) {
	switch cfg.Provider {
	case config.StorageMinIO:
		signer, err := minio.NewSigner(minio.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Container,
			UseSSL:    cfg.UseSSL,
			Region:    cfg.Region,
		})
		if err != nil {
			return nil, err
		}
		if cfg.CreateBucket {
			if err := signer.EnsureBucket(ctx); err != nil {
				return nil, fmt.Errorf("ensure bucket: %w", err)
			}
			logger.Info().Str("bucket", cfg.Container).Msg("bucket ready")
		}
		return signer, nil
	case config.StorageAzure:
		return azureblob.NewSigner(azureblob.Config{
			AccountName: cfg.AccountName,
			AccountKey:  cfg.AccountKey,
			Container:   cfg.Container,
			Endpoint:    cfg.Endpoint,
		})
	default:
		return nil, fmt.Errorf("%w: unknown storage provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}

func newExtractor(cfg config.ExtractionConfig, httpClient *http.Client, logger *zerolog.Logger) (driven.DocumentExtractor, error) {
	switch cfg.Provider {
	case config.ExtractionLocal:
		return pdftext.NewExtractor(pdftext.Config{HTTPClient: httpClient, Logger: logger}), nil
	case config.ExtractionDocIntel:
		var tokens azcred.TokenSource
		if cfg.Key == "" {
			src, err := azcred.NewDefaultSource(azcred.ScopeCognitiveServices)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
			}
			tokens = src
		}
		return docintel.NewClient(docintel.Config{
			Endpoint:     cfg.Endpoint,
			Key:          cfg.Key,
			Tokens:       tokens,
			APIVersion:   cfg.APIVersion,
			Model:        cfg.Model,
			PollInterval: cfg.PollInterval,
			HTTPClient:   httpClient,
			Logger:       logger,
		})
	default:
		return nil, fmt.Errorf("%w: unknown extraction provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}

func (a *App) newThreadStore(ctx context.Context, cfg config.ThreadsConfig) (driven.ThreadStore, error) {
	switch cfg.Store {
	case config.ThreadsMemory:
		return memory.NewThreadStore(), nil
	case config.ThreadsRedis:
		client, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return redisadapter.NewThreadStore(client, cfg.RedisTTL), nil
	case config.ThreadsPostgres:
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			return nil, err
		}
		return postgres.NewThreadStore(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown thread store %q", domain.ErrConfiguration, cfg.Store)
	}
}
