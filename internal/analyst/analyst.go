// Package analyst routes business questions to the reasoning graph. It adds
// input validation, a timeout, a rate limit and a response cache on top of a
// Reasoner, and binds the canned analysis questions.
package analyst

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/retail-analyst/server/internal/agent/model"
	errx "github.com/retail-analyst/server/internal/core/error"
	logx "github.com/retail-analyst/server/pkg/logger"
	"github.com/retail-analyst/server/pkg/metrics"
)

// DefaultConversationID is used by Analyze, which keeps one conversation for
// the life of the process.
const DefaultConversationID = "default"

// Reasoner answers one question with the help of the analysis tools.
type Reasoner interface {
	Reason(ctx context.Context, in model.QueryInput) (string, error)
}

// Config bounds calls into the Reasoner and sizes the response cache.
type Config struct {
	CacheCapacity int           `envconfig:"CACHE_CAPACITY" default:"256"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"0"`
	Timeout       time.Duration `envconfig:"REASONER_TIMEOUT" default:"60s"`
	RPM           int           `envconfig:"REASONER_RPM" default:"60"`
}

// Analyst is the query router.
type Analyst struct {
	reasoner Reasoner
	timeout  time.Duration
	throttle *Throttle
}

func New(reasoner Reasoner, cfg Config) *Analyst {
	return &Analyst{
		reasoner: reasoner,
		timeout:  cfg.Timeout,
		throttle: NewThrottle(cfg.RPM),
	}
}

// Analyze answers question in the default conversation.
func (a *Analyst) Analyze(ctx context.Context, question string) (string, error) {
	return a.AnalyzeConversation(ctx, DefaultConversationID, question)
}

// AnalyzeConversation answers question with the history of conversationID.
// Every failure of the reasoner is returned as a reasoning-stage errx error.
func (a *Analyst) AnalyzeConversation(ctx context.Context, conversationID, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errx.Invalid(errx.ErrInvalidInput, "question is empty")
	}
	if conversationID == "" {
		conversationID = DefaultConversationID
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := a.throttle.Wait(ctx); err != nil {
		metrics.ReasonerCalls.WithLabelValues("throttled").Inc()
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("reasoner call throttled")
		return "", errx.Reasoning(err)
	}

	start := time.Now()
	answer, err := a.reasoner.Reason(ctx, model.QueryInput{ConversationID: conversationID, Query: question})
	metrics.ReasonerDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.ReasonerCalls.WithLabelValues(outcome).Inc()
		logx.Error().
			Err(err).
			Str("conversation_id", conversationID).
			Int("question_len", len(question)).
			Str("stage", string(errx.StageReasoning)).
			Msg("analysis failed")
		return "", errx.Reasoning(err)
	}

	metrics.ReasonerCalls.WithLabelValues("ok").Inc()
	logx.Info().
		Str("conversation_id", conversationID).
		Int("question_len", len(question)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis completed")
	return answer, nil
}
