package tutor

import "time"

// Config holds the context-management thresholds.
//
// The summarize threshold is deliberately lower than the refine
// threshold: a long conversation gets a progress summary before its
// first mid-problem pattern refinement. Both may fire on the same
// message when both thresholds are crossed at once.
type Config struct {
	// SummarizeProblemEvery: messages accumulated past the last progress
	// summary before a new one is generated.
	SummarizeProblemEvery int

	// RefinePatternsThreshold: problem length (in messages) past which
	// patterns are refined while the problem is still open.
	RefinePatternsThreshold int

	// RecentMessagesCount: verbatim tail excluded from summarization and
	// shown in the final prompt.
	RecentMessagesCount int

	// MinMessagesForSummary: minimum slice length worth a generation call.
	MinMessagesForSummary int

	// GenerationTimeout bounds each generation call; expiry surfaces as a
	// generation failure.
	GenerationTimeout time.Duration

	// MaxTokens and Temperature apply to the summarization and
	// refinement calls.
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SummarizeProblemEvery:   15,
		RefinePatternsThreshold: 25,
		RecentMessagesCount:     6,
		MinMessagesForSummary:   5,
		GenerationTimeout:       30 * time.Second,
		MaxTokens:               512,
		Temperature:             0.3,
	}
}
