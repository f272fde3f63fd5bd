package tutor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sissi0509/AI-study-buddy/internal/llm"
)

// Summarizer condenses the messages of the current, unfinished problem
// into a short factual recap. It deliberately excludes judgments about
// mistakes or learning patterns - those belong to the Refiner. Mixing
// the two would collapse the two-tier context design.
type Summarizer struct {
	provider llm.Provider
	cfg      Config
}

// NewSummarizer creates a progress summarizer.
func NewSummarizer(provider llm.Provider, cfg Config) *Summarizer {
	return &Summarizer{provider: provider, cfg: cfg}
}

type progressOutput struct {
	Summary string `json:"summary"`
}

// SummarizeProgress produces a progress summary for the given message
// slice with one generation call.
func (s *Summarizer) SummarizeProgress(ctx context.Context, msgs []Message, topicName string) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeProgressSummary)

	req := llm.Request{
		System: progressSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildProgressUserMessage(msgs, topicName)},
		},
		Schema:      ProgressSummarySchema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("progress summarization: %w", err)
	}

	var out progressOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse progress summary response: %w", err)
	}

	return out.Summary, nil
}
