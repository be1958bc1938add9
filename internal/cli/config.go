package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/analyst"
	"github.com/retail-analyst/server/internal/analytics"
	"github.com/retail-analyst/server/internal/core"
	"github.com/retail-analyst/server/internal/server"
	logx "github.com/retail-analyst/server/pkg/logger"
	pkgredis "github.com/retail-analyst/server/pkg/redis"
)

// AppConfig defines every configurable parameter, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"APP_ENV" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`
	DatasetPath string           `envconfig:"DATASET_PATH" default:"retail_data.csv"`

	// Infrastructure
	Redis pkgredis.Config
	HTTP  server.Config

	// LLM provider and agent
	Provider     model.ProviderConfig
	Analyst      model.AnalystModelConfig
	Prompt       model.AnalystPromptConfig
	Conversation model.ConversationConfig
	Reasoner     analyst.Config

	Tools analytics.Thresholds
}

// LoadConfig reads envFile when it exists, then the process environment.
func LoadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			logx.Debug().Str("file", envFile).Msg("no env file, using process environment")
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
