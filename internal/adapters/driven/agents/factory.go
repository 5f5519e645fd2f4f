package agents

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/adapters/driven/azcred"
	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Supported agent providers
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

// Settings select and configure an agent runtime
type Settings struct {
	Provider string

	// Azure AI Foundry agent
	Endpoint     string
	AgentID      string
	APIVersion   string
	Token        string
	PollInterval time.Duration

	// OpenAI-compatible chat completion
	BaseURL      string
	APIKey       string
	Model        string
	Instructions string
}

// Factory creates agent clients based on configuration
type Factory struct {
	httpClient *http.Client
	logger     *zerolog.Logger
}

// NewFactory creates a new agent client factory
func NewFactory(httpClient *http.Client, logger *zerolog.Logger) *Factory {
	return &Factory{httpClient: httpClient, logger: logger}
}

// CreateAgentClient creates the agent client for settings.Provider.
// An Azure client without a static token uses the default credential chain.
func (f *Factory) CreateAgentClient(settings *Settings) (driven.AgentClient, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: agent settings are required", domain.ErrConfiguration)
	}

	switch settings.Provider {
	case ProviderAzure:
		var tokens azcred.TokenSource = azcred.StaticToken(settings.Token)
		if settings.Token == "" {
			src, err := azcred.NewDefaultSource(azcred.ScopeAIFoundry)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
			}
			tokens = src
		}
		return NewAzureClient(AzureConfig{
			Endpoint:     settings.Endpoint,
			AgentID:      settings.AgentID,
			Tokens:       tokens,
			APIVersion:   settings.APIVersion,
			PollInterval: settings.PollInterval,
			HTTPClient:   f.httpClient,
			Logger:       f.logger,
		})
	case ProviderOpenAI:
		return NewLLMClient(LLMConfig{
			BaseURL:      settings.BaseURL,
			APIKey:       settings.APIKey,
			Model:        settings.Model,
			Instructions: settings.Instructions,
			Logger:       f.logger,
		})
	default:
		return nil, fmt.Errorf("%w: unknown agent provider %q", domain.ErrConfiguration, settings.Provider)
	}
}
