package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository persists the question and answer turns of a conversation.
type ConversationRepository interface {
	// AddMessage appends a message to the conversation.
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error

	// LoadHistory returns every stored message, oldest first.
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes the conversation.
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of stored messages.
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory is the loaded message log of one conversation.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

// Recent returns the messages of the last maxTurns user turns.
func (h *ConversationHistory) Recent(maxTurns int) []*schema.Message {
	if h == nil || maxTurns <= 0 {
		return nil
	}
	turns := 0
	for i := len(h.Messages) - 1; i >= 0; i-- {
		if m := h.Messages[i]; m != nil && m.Role == schema.User {
			turns++
			if turns == maxTurns {
				return append([]*schema.Message(nil), h.Messages[i:]...)
			}
		}
	}
	return append([]*schema.Message(nil), h.Messages...)
}
