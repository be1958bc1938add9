package cli

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/retail-analyst/server/internal/agent/graph"
	"github.com/retail-analyst/server/internal/agent/graph/tools"
	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/agent/repo"
	"github.com/retail-analyst/server/internal/analyst"
	"github.com/retail-analyst/server/internal/analytics"
	"github.com/retail-analyst/server/internal/dataset"
	"github.com/retail-analyst/server/internal/server"
	logx "github.com/retail-analyst/server/pkg/logger"
	"github.com/retail-analyst/server/pkg/metrics"
)

// App is the wired application. Reasoner, Analyst, Cache and Facades are nil
// when it was bootstrapped without a language model.
type App struct {
	Config   *AppConfig
	Store    *dataset.Store
	Tools    *tools.Catalog
	Reasoner *graph.Reasoner
	Analyst  *analyst.Analyst
	Cache    *analyst.CachedAnalyst
	Facades  *analyst.Facades

	rdb *goredis.Client
}

// NewToolsApp loads the dataset and the tool catalog only.
func NewToolsApp(ctx context.Context, cfg *AppConfig) (*App, error) {
	store, err := dataset.OpenStore(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	metrics.DatasetRows.Set(float64(store.Current().Len()))
	logx.Info().Str("path", cfg.DatasetPath).Int("rows", store.Current().Len()).Msg("dataset loaded")

	catalog, err := tools.NewCatalog(ctx, store, analytics.NewCatalog(cfg.Tools))
	if err != nil {
		return nil, fmt.Errorf("build tools: %w", err)
	}
	return &App{Config: cfg, Store: store, Tools: catalog}, nil
}

// NewApp wires the full analyst: dataset, tools, conversation store,
// reasoning graph, cache and facades.
func NewApp(ctx context.Context, cfg *AppConfig) (*App, error) {
	app, err := NewToolsApp(ctx, cfg)
	if err != nil {
		return nil, err
	}

	convRepo, err := app.conversationRepo(ctx)
	if err != nil {
		return nil, err
	}

	app.Reasoner, err = graph.BuildAnalystGraph(ctx, graph.Config{
		Provider:         cfg.Provider,
		Analyst:          cfg.Analyst,
		Prompt:           cfg.Prompt,
		Conversation:     cfg.Conversation,
		ConversationRepo: convRepo,
		Store:            app.Store,
		Tools:            app.Tools,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build graph: %w", err)
	}

	app.Analyst = analyst.New(app.Reasoner, cfg.Reasoner)
	app.Cache = analyst.NewCachedAnalyst(app.Analyst, cfg.Reasoner.CacheCapacity, cfg.Reasoner.CacheTTL)
	app.Facades = analyst.NewFacades(app.Cache)

	app.Store.Subscribe(func(ds *dataset.Dataset) {
		app.Cache.Invalidate()
		metrics.DatasetRows.Set(float64(ds.Len()))
	})
	return app, nil
}

func (a *App) conversationRepo(ctx context.Context) (model.ConversationRepository, error) {
	conv := a.Config.Conversation
	maxMessages := conv.MaxTurns * 2
	if !a.Config.Redis.Enabled() {
		logx.Info().Msg("REDIS_URL not set, keeping conversations in memory")
		return repo.NewMemoryConversationRepository(conv.TTL, maxMessages), nil
	}

	rdb, err := a.Config.Redis.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.rdb = rdb
	logx.Info().Msg("connected to redis")
	return repo.NewRedisConversationRepository(rdb, conv.TTL, maxMessages), nil
}

// Server builds the HTTP server over the wired app.
func (a *App) Server() *server.Server {
	return server.New(a.Config.HTTP, server.Deps{
		Facades: a.Facades,
		Analyst: a.Analyst,
		Tools:   a.Tools,
		Store:   a.Store,
	})
}

// Close releases external connections.
func (a *App) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			logx.Warn().Err(err).Msg("close redis")
		}
	}
}
