package graph

import (
	"context"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-analyst/server/internal/agent/graph/conversations"
	"github.com/retail-analyst/server/internal/agent/graph/tools"
	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/agent/repo"
	"github.com/retail-analyst/server/internal/analytics"
	"github.com/retail-analyst/server/internal/dataset"
)

const retailCSV = `Transaction_ID,Date,Customer_Name,Product,Total_Items,Total_Cost,Payment_Method,City,Store_Type,Discount_Applied,Customer_Category,Season,Promotion
1000000000,2022-12-21 06:27:29,Stacey Price,"['Ketchup', 'Shaving Cream']",3,71.65,Mobile Payment,Los Angeles,Warehouse Club,True,Homemaker,Spring,None
1000000001,2023-07-01 13:05:11,Ryan Wright,['Bread'],2,25.93,Cash,San Francisco,Supermarket,False,Professional,Winter,BOGO (Buy One Get One)
1000000002,2023-03-15 09:00:00,Stacey Price,Milk,1,12.40,Credit Card,Los Angeles,Supermarket,False,Homemaker,Fall,Discount on Selected Items
`

// scriptedModel replays canned replies and records every input it sees.
type scriptedModel struct {
	mu      sync.Mutex
	replies []func() *schema.Message
	inputs  [][]*schema.Message
	tools   []*schema.ToolInfo
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, append([]*schema.Message(nil), input...))
	i := len(m.inputs) - 1
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return m.replies[i](), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	m.tools = tools
	return m, nil
}

func (m *scriptedModel) calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs
}

func toolCall(name, args string) func() *schema.Message {
	return func() *schema.Message {
		return schema.AssistantMessage("", []schema.ToolCall{{
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}})
	}
}

func answer(text string) func() *schema.Message {
	return func() *schema.Message {
		msg := schema.AssistantMessage(text, nil)
		msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}}
		return msg
	}
}

type fixture struct {
	reasoner *Reasoner
	model    *scriptedModel
	repo     *repo.MemoryConversationRepository
}

func newFixture(t *testing.T, maxCalls int, replies ...func() *schema.Message) *fixture {
	t.Helper()
	ctx := context.Background()

	ds, err := dataset.Parse("retail.csv", strings.NewReader(retailCSV))
	require.NoError(t, err)
	store := dataset.NewStore("retail.csv", ds)
	catalog, err := tools.NewCatalog(ctx, store, analytics.NewCatalog(analytics.DefaultThresholds()))
	require.NoError(t, err)

	conv := model.ConversationConfig{MaxTurns: 5}
	conv.Tools.MaxCalls = maxCalls
	r := repo.NewMemoryConversationRepository(0, 0)
	m := &scriptedModel{replies: replies}

	reasoner, err := NewReasoner(ctx, &GraphConfig{
		ChatModel:       m,
		ModelName:       "gemini-2.5-flash",
		MessagesManager: conversations.NewMessagesManager(r, conv),
		PromptConfig:    &model.AnalystPromptConfig{BusinessName: "Acme", Currency: "USD"},
		Store:           store,
		Tools:           catalog,
		ToolMaxCalls:    maxCalls,
	})
	require.NoError(t, err)
	return &fixture{reasoner: reasoner, model: m, repo: r}
}

func TestReasonerCallsToolThenAnswers(t *testing.T) {
	f := newFixture(t, 4,
		toolCall(tools.ToolCustomerLifetimeValue, ""),
		answer("Stacey Price is the most valuable customer."),
	)

	got, err := f.reasoner.Reason(context.Background(), model.QueryInput{ConversationID: "c1", Query: "Who spends the most?"})
	require.NoError(t, err)
	assert.Equal(t, "Stacey Price is the most valuable customer.", got)
	assert.Len(t, f.model.tools, 11)

	calls := f.model.calls()
	require.Len(t, calls, 2)

	first := calls[0]
	require.GreaterOrEqual(t, len(first), 2)
	assert.Equal(t, schema.System, first[0].Role)
	assert.Contains(t, first[0].Content, "Acme")
	assert.Contains(t, first[0].Content, tools.ToolSeasonalTrends)
	assert.Equal(t, "Who spends the most?", first[len(first)-1].Content)

	last := calls[1][len(calls[1])-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "Stacey Price")

	h, err := f.repo.LoadHistory(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, schema.User, h.Messages[0].Role)
	assert.Equal(t, schema.Assistant, h.Messages[1].Role)
}

func TestReasonerCarriesConversationHistory(t *testing.T) {
	f := newFixture(t, 4, answer("first answer"), answer("second answer"))
	ctx := context.Background()

	_, err := f.reasoner.Reason(ctx, model.QueryInput{ConversationID: "c1", Query: "q1"})
	require.NoError(t, err)
	_, err = f.reasoner.Reason(ctx, model.QueryInput{ConversationID: "c1", Query: "q2"})
	require.NoError(t, err)

	second := f.model.calls()[1]
	require.Len(t, second, 4)
	assert.Equal(t, "q1", second[1].Content)
	assert.Equal(t, "first answer", second[2].Content)
	assert.Equal(t, "q2", second[3].Content)

	require.NoError(t, f.reasoner.Forget(ctx, "c1"))
	n, err := f.repo.GetMessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReasonerStopsAtToolLimit(t *testing.T) {
	wrapUp := func() *schema.Message {
		msg := toolCall(tools.ToolSalesOverview, "{}")()
		msg.Content = "Partial answer from the overview."
		return msg
	}
	f := newFixture(t, 1, toolCall(tools.ToolSalesOverview, "{}"), wrapUp)

	got, err := f.reasoner.Reason(context.Background(), model.QueryInput{ConversationID: "c1", Query: "Summarize"})
	require.NoError(t, err)
	assert.Equal(t, "Partial answer from the overview.", got)

	calls := f.model.calls()
	require.Len(t, calls, 2)
	notice := calls[1][len(calls[1])-1]
	assert.Equal(t, schema.System, notice.Role)
	assert.Contains(t, notice.Content, "maximum tool call limit (1)")
}

func TestReasonerHandlesUnknownTool(t *testing.T) {
	f := newFixture(t, 4, toolCall("forecast_sales", `{"months":3}`), answer("I cannot forecast."))

	got, err := f.reasoner.Reason(context.Background(), model.QueryInput{ConversationID: "c1", Query: "Forecast"})
	require.NoError(t, err)
	assert.Equal(t, "I cannot forecast.", got)

	last := f.model.calls()[1]
	assert.Contains(t, last[len(last)-1].Content, "unknown tool")
}

func TestReasonerRejectsEmptyAnswer(t *testing.T) {
	f := newFixture(t, 4, answer("   "))
	_, err := f.reasoner.Reason(context.Background(), model.QueryInput{ConversationID: "c1", Query: "?"})
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}
