package llm

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names for the closed model set.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderGroq   = "groq"
	ProviderOllama = "ollama"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// modelProviders is the closed set of supported models. Adding a model means
// adding it here; there is no runtime discovery.
var modelProviders = map[string]string{
	"gpt-4o-mini":             ProviderOpenAI,
	"gpt-4o":                  ProviderOpenAI,
	"gemini-1.5-flash":        ProviderGoogle,
	"gemini-1.5-pro":          ProviderGoogle,
	"llama-3.1-8b-instant":    ProviderGroq,
	"llama-3.3-70b-versatile": ProviderGroq,
	"qwen/qwen3-32b":          ProviderGroq,
	"openai/gpt-oss-20b":      ProviderGroq,
	"llama3.1":                ProviderOllama,
}

// AvailableModels returns the supported model names, sorted.
func AvailableModels() []string {
	names := make([]string, 0, len(modelProviders))
	for name := range modelProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient creates a gateway for the named model. The provider is selected
// from the closed model set; unknown names are rejected.
func NewClient(ctx context.Context, modelName string) (Client, error) {
	provider, ok := modelProviders[modelName]
	if !ok {
		return nil, fmt.Errorf("unknown model %q, available models: %v", modelName, AvailableModels())
	}

	switch provider {
	case ProviderOpenAI:
		model, err := openai.New(
			openai.WithModel(modelName),
			openai.WithToken(os.Getenv("OPENAI_API_KEY")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client for %q: %w", modelName, err)
		}
		return newGateway(model, modelName, provider), nil

	case ProviderGoogle:
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
			googleai.WithDefaultModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google AI client for %q: %w", modelName, err)
		}
		return newGateway(model, modelName, provider), nil

	case ProviderGroq:
		// Groq speaks the OpenAI wire protocol.
		model, err := openai.New(
			openai.WithModel(modelName),
			openai.WithToken(os.Getenv("GROQ_API_KEY")),
			openai.WithBaseURL(groqBaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Groq client for %q: %w", modelName, err)
		}
		return newGateway(model, modelName, provider), nil

	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(modelName)}
		if serverURL := os.Getenv("OLLAMA_SERVER_URL"); serverURL != "" {
			opts = append(opts, ollama.WithServerURL(serverURL))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client for %q: %w", modelName, err)
		}
		return newGateway(model, modelName, provider), nil
	}

	return nil, fmt.Errorf("no constructor for provider %q", provider)
}
