package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// It is registered through compose.WithGenLocalState and is only read or
// written inside state handlers and compose.ProcessState, which serialize access.
type AppState struct {
	ConversationID       string
	History              []*schema.Message
	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int      // synthesizes tool_call_id when the provider omits it
	ToolsUsed            []string // tool names in call order

	// Accumulated LLM cost (USD) for this question.
	TotalCostUSD float64
}

// QueryInput is one question for the analyst.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}
