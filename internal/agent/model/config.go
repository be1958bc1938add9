package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL      time.Duration `envconfig:"CONVERSATION_TTL" default:"30m"`
	MaxTurns int           `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
	Tools    struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"8"`
	}
}

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type ProviderConfig struct {
	Name          string `envconfig:"LLM_PROVIDER" default:"gemini"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
}

type AnalystModelConfig struct {
	Model          string  `envconfig:"ANALYST_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"ANALYST_MAX_TOKENS" default:"4000"`
	Temperature    float32 `envconfig:"ANALYST_TEMPERATURE" default:"0"`
	ThinkingBudget int32   `envconfig:"ANALYST_THINKING_BUDGET" default:"1024"`
}

type AnalystPromptConfig struct {
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"the retail chain"`
	Currency     string `envconfig:"PROMPT_CURRENCY" default:"USD"`
}
