package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sissi0509/AI-study-buddy/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an
// event row, including token counts and estimated cost.
type LoggingProvider struct {
	inner  Provider
	kind   string
	events EventRecorder
}

// WithLogging wraps a Provider with event logging. kind is the provider
// name ("gemini", "anthropic", ...) recorded alongside the model ID.
func WithLogging(p Provider, kind string, events EventRecorder) Provider {
	return &LoggingProvider{inner: p, kind: kind, events: events}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latencyMs := time.Since(start).Milliseconds()

	data := store.LLMRequestEventData{
		Provider:  l.kind,
		Model:     l.inner.ModelID(),
		Purpose:   purpose,
		LatencyMs: latencyMs,
		Success:   err == nil,
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		if cost := LookupCost(resp.Model); cost != nil {
			data.CostUSD = cost.Cost(resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
	}

	if err != nil {
		data.ErrorMessage = err.Error()
	}

	// Record the event but don't fail the request if recording fails.
	if logErr := l.events.AppendLLMRequest(ctx, data); logErr != nil {
		log.Warn().Err(logErr).Str("purpose", purpose).Msg("failed to record LLM request event")
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
