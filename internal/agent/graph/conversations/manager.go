package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/model"
)

// MessagesManager reads and writes the question and answer turns that give
// the model its conversational context. Tool traffic is never persisted.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// BuildContext stores the question, then returns the system prompt followed by
// the most recent turns, ending with the question itself.
func (cm *MessagesManager) BuildContext(ctx context.Context, conversationID, systemPrompt, query string) ([]*schema.Message, error) {
	if err := cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(query)); err != nil {
		return nil, err
	}

	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	for _, msg := range history.Recent(cm.maxTurns) {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Role != schema.User && msg.Role != schema.Assistant {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// SaveResponse appends the final answer to the conversation.
func (cm *MessagesManager) SaveResponse(ctx context.Context, conversationID string, content string) error {
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.AssistantMessage(content, nil))
}

// Reset forgets the conversation.
func (cm *MessagesManager) Reset(ctx context.Context, conversationID string) error {
	return cm.conversationRepo.ClearHistory(ctx, conversationID)
}
