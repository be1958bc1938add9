package nodes

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/model"
)

const DefaultMaxToolCalls = 10

// normalizeMaxToolCalls returns DefaultMaxToolCalls for non-positive limits.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit marks the state once the tool budget is spent.
// Returns true only on the call that marks it.
func checkAndMarkToolLimit(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if !state.ToolCallLimitReached && state.ToolCallCount >= max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// incrementToolCallAndCheck counts one tool round and reports whether it went
// over the limit.
func incrementToolCallAndCheck(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	state.ToolCallCount++
	if state.ToolCallCount > max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// fillToolCallID sets a missing tool_call_id on a tool message from the most
// recent assistant tool call. Some providers drop it.
func fillToolCallID(msg *schema.Message, history []*schema.Message) {
	if msg == nil || msg.Role != schema.Tool || strings.TrimSpace(msg.ToolCallID) != "" {
		return
	}
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		if h == nil || h.Role != schema.Assistant || len(h.ToolCalls) == 0 {
			continue
		}
		if id := strings.TrimSpace(h.ToolCalls[0].ID); id != "" {
			msg.ToolCallID = id
		}
		return
	}
}
