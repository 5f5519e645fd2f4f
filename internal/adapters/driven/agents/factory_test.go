package agents

import (
	"errors"
	"testing"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

func TestFactory_CreateAgentClient_NilSettings(t *testing.T) {
	factory := NewFactory(nil, nil)

	if _, err := factory.CreateAgentClient(nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestFactory_CreateAgentClient_Azure(t *testing.T) {
	factory := NewFactory(nil, nil)

	client, err := factory.CreateAgentClient(&Settings{
		Provider: ProviderAzure,
		Endpoint: "https://res.services.ai.azure.com/api/projects/p",
		AgentID:  "asst_1",
		Token:    "tok",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := client.(*AzureClient); !ok {
		t.Errorf("expected *AzureClient, got %T", client)
	}
}

func TestFactory_CreateAgentClient_AzureMissingAgent(t *testing.T) {
	factory := NewFactory(nil, nil)

	_, err := factory.CreateAgentClient(&Settings{Provider: ProviderAzure, Endpoint: "https://x", Token: "tok"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestFactory_CreateAgentClient_OpenAI(t *testing.T) {
	factory := NewFactory(nil, nil)

	client, err := factory.CreateAgentClient(&Settings{
		Provider: ProviderOpenAI,
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := client.(*LLMClient); !ok {
		t.Errorf("expected *LLMClient, got %T", client)
	}
}

func TestFactory_CreateAgentClient_UnknownProvider(t *testing.T) {
	factory := NewFactory(nil, nil)

	_, err := factory.CreateAgentClient(&Settings{Provider: "anthropic"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}
