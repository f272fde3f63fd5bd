package llm

import "context"

// Purpose labels for the three generation call sites. They end up in
// the event log and make per-feature cost breakdowns possible.
const (
	PurposeTutorReply      = "tutor-reply"
	PurposeProgressSummary = "progress-summary"
	PurposePatternRefine   = "pattern-refine"
)

type contextKey string

const purposeKey contextKey = "llm_purpose"

// WithPurpose tags the context with the purpose of the generation call
// it carries. The logging decorator reads it back.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom returns the purpose attached to ctx, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}
