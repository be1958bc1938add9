package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/graph/conversations"
	"github.com/retail-analyst/server/internal/agent/graph/prompts"
	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/dataset"
	logx "github.com/retail-analyst/server/pkg/logger"
	"github.com/retail-analyst/server/pkg/metrics"
)

// NewInputConverterPreHandler resets the per-question counters.
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.History = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.ToolsUsed = nil
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode renders the system prompt for the current dataset and
// prepends it to the conversation history.
func NewInputConverterNode(
	mm *conversations.MessagesManager,
	promptCfg *model.AnalystPromptConfig,
	store *dataset.Store,
	toolInfos []*schema.ToolInfo,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		systemPrompt, err := prompts.RenderAnalystSystem(ctx, *promptCfg, store.Current(), toolInfos)
		if err != nil {
			return nil, fmt.Errorf("render analyst system prompt: %w", err)
		}

		messages, err := mm.BuildContext(ctx, input.ConversationID, systemPrompt, input.Query)
		if err != nil {
			return nil, fmt.Errorf("build conversation context: %w", err)
		}
		return messages, nil
	})
}

// NewAnalystChatModelPreHandler accumulates the message log in state and, once
// the tool budget is spent, asks the model to answer with what it has.
func NewAnalystChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		for _, msg := range in {
			fillToolCallID(msg, state.History)
		}
		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			state.History = append(state.History, &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Answer now using only the tool results you already have, and say which parts of the question "+
						"you could not cover.",
					normalizeMaxToolCalls(maxToolCalls),
				),
			})
		}

		logx.Debug().Str("conversation_id", state.ConversationID).Int("messages", len(state.History)).Msg("analyst thinking")
		return state.History, nil
	}
}

// NewAnalystChatModelPostHandler prices the call, fills missing tool call IDs
// and stores the final answer.
func NewAnalystChatModelPostHandler(
	mm *conversations.MessagesManager,
	modelName string,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("analyst model returned no message")
		}

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			cost := model.ComputeCost(modelName, out.ResponseMeta.Usage)
			state.TotalCostUSD += cost.TotalCost
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost"] = cost
			out.Extra["usage_cost_total_usd"] = state.TotalCostUSD

			metrics.LLMTokensTotal.WithLabelValues(modelName, "input").Add(float64(cost.PromptTokens))
			metrics.LLMTokensTotal.WithLabelValues(modelName, "output").Add(float64(cost.CompletionTokens))
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("node", NodeAnalystChatModel).
				Str("model", modelName).
				Int("prompt_tokens", cost.PromptTokens).
				Int("completion_tokens", cost.CompletionTokens).
				Float64("total_cost_usd", cost.TotalCost).
				Msg("LLM usage")
		}

		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}
		state.History = append(state.History, out)

		final := len(out.ToolCalls) == 0 || state.ToolCallLimitReached
		if !final {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("calling tools")
			return out, nil
		}

		if out.Role == schema.Assistant && strings.TrimSpace(out.Content) != "" {
			if err := mm.SaveResponse(ctx, state.ConversationID, out.Content); err != nil {
				// The answer is still returned; only the next turn loses context.
				logx.Error().Str("conversation_id", state.ConversationID).Err(err).Msg("error saving analyst answer")
			}
		}
		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Strs("tools_used", state.ToolsUsed).
			Float64("total_cost_usd", state.TotalCostUSD).
			Msg("analyst answer ready")
		return out, nil
	}
}

// NewToolExecutorCondition routes tool calls to the ToolExecutor until the
// tool budget is spent.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if limitReached {
			logx.Debug().Msg("tool limit reached, routing to end")
			return compose.END, nil
		}
		if input != nil && len(input.ToolCalls) > 0 {
			return NodeToolExecutor, nil
		}
		return compose.END, nil
	}
}

// NewToolExecutorPreHandler counts tool rounds and records which tools ran.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)
		for _, tc := range in.ToolCalls {
			state.ToolsUsed = append(state.ToolsUsed, tc.Function.Name)
		}

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("conversation_id", state.ConversationID).
			Msg("tool execution attempt")

		if exceeded {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("conversation_id", state.ConversationID).
				Msg("tool call limit exceeded")
		}
		return in, nil
	}
}
