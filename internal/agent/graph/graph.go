package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/graph/conversations"
	"github.com/retail-analyst/server/internal/agent/graph/nodes"
	"github.com/retail-analyst/server/internal/agent/graph/observers"
	"github.com/retail-analyst/server/internal/agent/graph/tools"
	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/dataset"
	logx "github.com/retail-analyst/server/pkg/logger"
)

// ErrEmptyAnswer is returned when the model finishes without any text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Config holds everything needed to build the analyst reasoner end-to-end.
// It constructs the chat model and the MessagesManager on top of GraphConfig.
type Config struct {
	Provider         model.ProviderConfig
	Analyst          model.AnalystModelConfig
	Prompt           model.AnalystPromptConfig
	Conversation     model.ConversationConfig
	ConversationRepo model.ConversationRepository
	Store            *dataset.Store
	Tools            *tools.Catalog
}

// GraphConfig holds the already built collaborators of the graph.
type GraphConfig struct {
	ChatModel       einomodel.ToolCallingChatModel
	ModelName       string
	MessagesManager *conversations.MessagesManager
	PromptConfig    *model.AnalystPromptConfig
	Store           *dataset.Store
	Tools           *tools.Catalog
	ToolMaxCalls    int
}

// GraphBuilder handles the construction of the analyst graph.
type GraphBuilder struct {
	config    *GraphConfig
	graph     *compose.Graph[model.QueryInput, *schema.Message]
	chatModel einomodel.ToolCallingChatModel
	toolInfos []*schema.ToolInfo
}

// Reasoner answers questions by running the compiled graph.
type Reasoner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
	mm       *conversations.MessagesManager
}

// Reason runs one question through the graph and returns the final answer text.
func (r *Reasoner) Reason(ctx context.Context, in model.QueryInput) (string, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return "", err
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", ErrEmptyAnswer
	}
	return out.Content, nil
}

// Forget clears the stored history of a conversation.
func (r *Reasoner) Forget(ctx context.Context, conversationID string) error {
	return r.mm.Reset(ctx, conversationID)
}

// BuildAnalystGraph creates the chat model and MessagesManager, builds the graph and returns a Reasoner.
func BuildAnalystGraph(ctx context.Context, cfg Config) (*Reasoner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}

	cm, err := nodes.NewChatModel(ctx, nodes.ChatModelConfig{
		Provider: cfg.Provider,
		Analyst:  cfg.Analyst,
	})
	if err != nil {
		return nil, err
	}

	return NewReasoner(ctx, &GraphConfig{
		ChatModel:       cm,
		ModelName:       cfg.Analyst.Model,
		MessagesManager: conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation),
		PromptConfig:    &cfg.Prompt,
		Store:           cfg.Store,
		Tools:           cfg.Tools,
		ToolMaxCalls:    cfg.Conversation.Tools.MaxCalls,
	})
}

// NewReasoner compiles the graph from prebuilt collaborators.
func NewReasoner(ctx context.Context, config *GraphConfig) (*Reasoner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("analyst graph built successfully")
	return &Reasoner{runnable: runnable, mm: config.MessagesManager}, nil
}

// BuildGraph constructs and returns the compiled analyst graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Tools == nil || config.Store == nil {
		return nil, fmt.Errorf("tool catalog or dataset store is nil")
	}
	if config.PromptConfig == nil {
		config.PromptConfig = &model.AnalystPromptConfig{}
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// setupTools binds the catalog to the chat model and adds the tools node.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	infos, err := b.config.Tools.Infos(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}
	b.toolInfos = infos

	b.chatModel, err = nodes.BindTools(b.config.ChatModel, infos)
	if err != nil {
		return err
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               b.config.Tools.Tools(),
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("unknown tool call, returning fallback result")
			return fmt.Sprintf(`{"tool":%q,"error":"unknown tool, use one of: %s","kind":"unknown_analysis"}`,
				name, strings.Join(b.config.Tools.Names(), ", ")), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return tools.SanitizeArguments(name, arguments), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	return b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
	)
}

func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager, b.config.PromptConfig, b.config.Store, b.toolInfos),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add input converter node: %w", err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeAnalystChatModel, b.chatModel,
		compose.WithStatePreHandler(nodes.NewAnalystChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewAnalystChatModelPostHandler(b.config.MessagesManager, b.config.ModelName)),
	); err != nil {
		return fmt.Errorf("add analyst chat model node: %w", err)
	}
	return nil
}

func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeAnalystChatModel},
		{nodes.NodeToolExecutor, nodes.NodeAnalystChatModel},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			compose.END:            true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeAnalystChatModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

// compile bounds the run steps so a model that keeps calling tools cannot loop forever.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	maxSteps := max(20, 10+b.config.ToolMaxCalls*2)

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Int("max_steps", maxSteps).Msg("graph compiled successfully")
	return runnable, nil
}
