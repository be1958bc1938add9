package repo

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/retail-analyst/server/internal/agent/model"
)

// MemoryConversationRepository keeps conversations in process memory. A
// conversation idle for longer than ttl is dropped on next access.
type MemoryConversationRepository struct {
	mu          sync.Mutex
	ttl         time.Duration
	maxMessages int
	now         func() time.Time
	items       map[string]*memoryConversation
}

type memoryConversation struct {
	messages []*schema.Message
	touched  time.Time
}

func NewMemoryConversationRepository(ttl time.Duration, maxMessages int) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		ttl:         ttl,
		maxMessages: maxMessages,
		now:         time.Now,
		items:       map[string]*memoryConversation{},
	}
}

// get returns the live conversation, evicting it first when expired.
func (r *MemoryConversationRepository) get(conversationID string) *memoryConversation {
	c, ok := r.items[conversationID]
	if !ok {
		return nil
	}
	if r.ttl > 0 && r.now().Sub(c.touched) > r.ttl {
		delete(r.items, conversationID)
		return nil
	}
	return c
}

func (r *MemoryConversationRepository) AddMessage(_ context.Context, conversationID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(conversationID)
	if c == nil {
		c = &memoryConversation{}
		r.items[conversationID] = c
	}
	c.messages = append(c.messages, message)
	if r.maxMessages > 0 && len(c.messages) > r.maxMessages {
		c.messages = append([]*schema.Message(nil), c.messages[len(c.messages)-r.maxMessages:]...)
	}
	c.touched = r.now()
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := &model.ConversationHistory{ConversationID: conversationID}
	if c := r.get(conversationID); c != nil {
		h.Messages = append([]*schema.Message(nil), c.messages...)
	}
	return h, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, conversationID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.get(conversationID); c != nil {
		return len(c.messages), nil
	}
	return 0, nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
