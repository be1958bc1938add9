package analyst

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-analyst/server/internal/agent/model"
	errx "github.com/retail-analyst/server/internal/core/error"
)

// stubReasoner answers deterministically and counts its calls.
type stubReasoner struct {
	calls atomic.Int32
	fail  atomic.Bool
	delay time.Duration

	mu     sync.Mutex
	inputs []model.QueryInput
}

func (s *stubReasoner) Reason(ctx context.Context, in model.QueryInput) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.fail.Load() {
		return "", errors.New("upstream 503: model overloaded")
	}
	return "answer: " + in.Query, nil
}

func newAnalyst(r Reasoner) *Analyst {
	return New(r, Config{Timeout: time.Second})
}

func TestAnalyzeDelegatesToReasoner(t *testing.T) {
	r := &stubReasoner{}
	a := newAnalyst(r)

	got, err := a.Analyze(context.Background(), "What sells best?")
	require.NoError(t, err)
	assert.Equal(t, "answer: What sells best?", got)
	require.Len(t, r.inputs, 1)
	assert.Equal(t, DefaultConversationID, r.inputs[0].ConversationID)

	_, err = a.AnalyzeConversation(context.Background(), "c-42", "Again?")
	require.NoError(t, err)
	assert.Equal(t, "c-42", r.inputs[1].ConversationID)
}

func TestAnalyzeRejectsEmptyQuestion(t *testing.T) {
	r := &stubReasoner{}
	_, err := newAnalyst(r).Analyze(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrInvalidInput))
	assert.Zero(t, r.calls.Load())
}

func TestAnalyzeWrapsReasonerFailure(t *testing.T) {
	r := &stubReasoner{}
	r.fail.Store(true)

	_, err := newAnalyst(r).Analyze(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrReasoning))
	assert.Equal(t, errx.StageReasoning, errx.StageOf(err))
	assert.Equal(t, errx.ReasoningErrorMessage, errx.PublicMessage(err))
	assert.NotContains(t, errx.PublicMessage(err), "503")
}

func TestAnalyzeTimesOut(t *testing.T) {
	r := &stubReasoner{delay: time.Second}
	a := New(r, Config{Timeout: 20 * time.Millisecond})

	_, err := a.Analyze(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrReasoning))
}

func TestCachedAnalystCallsReasonerOnce(t *testing.T) {
	r := &stubReasoner{}
	c := NewCachedAnalyst(newAnalyst(r), 8, 0)
	ctx := context.Background()

	first, err := c.Analyze(ctx, "Top customers?")
	require.NoError(t, err)
	second, err := c.Analyze(ctx, "Top customers?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, r.calls.Load())

	// No normalization: a different spelling is a different key.
	_, err = c.Analyze(ctx, "top customers?")
	require.NoError(t, err)
	assert.EqualValues(t, 2, r.calls.Load())
}

func TestCachedAnalystDoesNotCacheFailures(t *testing.T) {
	r := &stubReasoner{}
	r.fail.Store(true)
	c := NewCachedAnalyst(newAnalyst(r), 8, 0)
	ctx := context.Background()

	_, err := c.Analyze(ctx, "q")
	require.Error(t, err)
	assert.Zero(t, c.Len())

	r.fail.Store(false)
	got, err := c.Analyze(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "answer: q", got)
	assert.EqualValues(t, 2, r.calls.Load())
}

func TestCachedAnalystBoundsAndInvalidate(t *testing.T) {
	r := &stubReasoner{}
	c := NewCachedAnalyst(newAnalyst(r), 2, 0)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		_, err := c.Analyze(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	_, err := c.Analyze(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 4, r.calls.Load(), "oldest entry was evicted")

	c.Invalidate()
	assert.Zero(t, c.Len())
	_, err = c.Analyze(ctx, "c")
	require.NoError(t, err)
	assert.EqualValues(t, 5, r.calls.Load())
}

func TestCachedAnalystExpiresEntries(t *testing.T) {
	r := &stubReasoner{}
	c := NewCachedAnalyst(newAnalyst(r), 8, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.Analyze(ctx, "q")
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = c.Analyze(ctx, "q")
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.calls.Load())

	now = now.Add(time.Minute)
	_, err = c.Analyze(ctx, "q")
	require.NoError(t, err)
	assert.EqualValues(t, 2, r.calls.Load())
}

func TestCachedAnalystCollapsesConcurrentQuestions(t *testing.T) {
	r := &stubReasoner{delay: 50 * time.Millisecond}
	c := NewCachedAnalyst(newAnalyst(r), 8, 0)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Analyze(context.Background(), "same")
			assert.NoError(t, err)
			assert.Equal(t, "answer: same", got)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, r.calls.Load())
}

// gatedAnalyzer blocks its first call until release is closed.
type gatedAnalyzer struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, question string) (string, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
		<-g.release
		return "stale", nil
	}
	return "fresh", nil
}

func TestCachedAnalystInvalidateDetachesCallsInFlight(t *testing.T) {
	g := &gatedAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCachedAnalyst(g, 8, 0)
	ctx := context.Background()

	done := make(chan string, 1)
	go func() {
		got, err := c.Analyze(ctx, "X")
		assert.NoError(t, err)
		done <- got
	}()
	<-g.started

	c.Invalidate()
	got, err := c.Analyze(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
	assert.EqualValues(t, 2, g.calls.Load())

	close(g.release)
	assert.Equal(t, "stale", <-done)

	got, err = c.Analyze(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got, "answer from before the invalidation is not stored")
	assert.EqualValues(t, 2, g.calls.Load())
}

func TestCachedAnalystCancelledCallerGetsReasoningError(t *testing.T) {
	r := &stubReasoner{delay: 200 * time.Millisecond}
	c := NewCachedAnalyst(newAnalyst(r), 8, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Analyze(ctx, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrReasoning)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
	assert.Equal(t, errx.ReasoningErrorMessage, errx.PublicMessage(err))
}

func TestFacades(t *testing.T) {
	r := &stubReasoner{}
	f := NewFacades(newAnalyst(r))
	ctx := context.Background()

	assert.Len(t, f.Types(), 26)
	assert.Contains(t, f.Types(), "promotion")

	gender, ok := f.Lookup("gender_based_item")
	require.True(t, ok)
	assert.Equal(t, []string{"What are the top products purchased by male and female customers?"}, gender.Questions)

	got, err := f.Run(ctx, "customer")
	require.NoError(t, err)
	assert.Contains(t, got, "customer segmentation")
	assert.Contains(t, got, "top 10 customers by lifetime value")
	assert.EqualValues(t, 2, r.calls.Load())

	_, err = f.Run(ctx, "horoscope")
	assert.True(t, errors.Is(err, errx.ErrUnknownAnalysis))

	_, err = f.Dispatch(ctx, CustomAnalysis, "")
	assert.True(t, errors.Is(err, errx.ErrInvalidInput))

	got, err = f.Dispatch(ctx, "Custom", "What is the top sold item in Chicago?")
	require.NoError(t, err)
	assert.Equal(t, "answer: What is the top sold item in Chicago?", got)
}
