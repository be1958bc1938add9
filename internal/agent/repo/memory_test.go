package repo

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConversationRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository(0, 0)

	require.NoError(t, r.AddMessage(ctx, "c1", schema.UserMessage("hi")))
	require.NoError(t, r.AddMessage(ctx, "c1", schema.AssistantMessage("hello", nil)))
	require.NoError(t, r.AddMessage(ctx, "c2", schema.UserMessage("other")))

	h, err := r.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, "hi", h.Messages[0].Content)
	assert.Equal(t, schema.Assistant, h.Messages[1].Role)

	n, err := r.GetMessageCount(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, r.ClearHistory(ctx, "c1"))
	h, err = r.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, h.Messages)
}

func TestMemoryConversationRepositoryBounds(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository(time.Minute, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, r.AddMessage(ctx, "c1", schema.UserMessage(q)))
	}
	h, err := r.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, "b", h.Messages[0].Content)

	now = now.Add(2 * time.Minute)
	n, err := r.GetMessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
