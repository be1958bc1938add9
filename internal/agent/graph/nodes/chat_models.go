package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/retail-analyst/server/internal/agent/model"
	logx "github.com/retail-analyst/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Provider model.ProviderConfig
	Analyst  model.AnalystModelConfig
}

// NewChatModel creates the analyst chat model for the configured provider.
func NewChatModel(ctx context.Context, config ChatModelConfig) (einomodel.ToolCallingChatModel, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider.Name)) {
	case model.ProviderGemini, "":
		return newGeminiChatModel(ctx, config)
	case model.ProviderOpenAI:
		return newOpenAIChatModel(ctx, config)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", config.Provider.Name)
	}
}

func newGeminiChatModel(ctx context.Context, config ChatModelConfig) (einomodel.ToolCallingChatModel, error) {
	if config.Provider.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  config.Provider.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.Provider.GeminiBaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.Provider.GeminiBaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	cfg := &gemini.Config{
		Client:      client,
		Model:       config.Analyst.Model,
		Temperature: &config.Analyst.Temperature,
		MaxTokens:   &config.Analyst.MaxTokens,
	}
	if config.Analyst.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(config.Analyst.ThinkingBudget),
		}
	}
	cm, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini analyst model")
		return nil, fmt.Errorf("error creating Gemini analyst model: %w", err)
	}
	return cm, nil
}

func newOpenAIChatModel(ctx context.Context, config ChatModelConfig) (einomodel.ToolCallingChatModel, error) {
	if config.Provider.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      config.Provider.OpenAIAPIKey,
		BaseURL:     config.Provider.OpenAIBaseURL,
		Model:       config.Analyst.Model,
		Temperature: &config.Analyst.Temperature,
		MaxTokens:   &config.Analyst.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating OpenAI analyst model")
		return nil, fmt.Errorf("error creating OpenAI analyst model: %w", err)
	}
	return cm, nil
}

// BindTools returns a copy of cm that can call tools.
func BindTools(cm einomodel.ToolCallingChatModel, infos []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	bound, err := cm.WithTools(infos)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	logx.Debug().Int("tool_count", len(infos)).Msg("Successfully bound tools to analyst model")
	return bound, nil
}
