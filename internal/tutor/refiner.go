package tutor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sissi0509/AI-study-buddy/internal/llm"
)

// Refiner folds problem-session evidence into the cumulative
// learning-pattern profile. The profile is replaced wholesale on each
// refinement: it is the current best understanding, not a log.
type Refiner struct {
	provider llm.Provider
	cfg      Config
}

// NewRefiner creates a learning-pattern refiner.
func NewRefiner(provider llm.Provider, cfg Config) *Refiner {
	return &Refiner{provider: provider, cfg: cfg}
}

type patternsOutput struct {
	Patterns string `json:"patterns"`
}

// RefinePatterns produces an updated learning-pattern profile from the
// message slice with one generation call. With an empty previous
// profile it performs a cold-start analysis of the slice alone;
// otherwise it iteratively refines the existing profile against the
// new evidence.
func (r *Refiner) RefinePatterns(ctx context.Context, msgs []Message, previousPatterns, topicName string) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposePatternRefine)

	var system, user string
	if previousPatterns == "" {
		system = initialPatternsSystemPrompt
		user = buildInitialPatternsUserMessage(msgs, topicName)
	} else {
		system = refinePatternsSystemPrompt
		user = buildRefinePatternsUserMessage(msgs, previousPatterns, topicName)
	}

	req := llm.Request{
		System: system,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: user},
		},
		Schema:      LearningPatternsSchema,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}

	resp, err := r.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("pattern refinement: %w", err)
	}

	var out patternsOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse pattern refinement response: %w", err)
	}

	return out.Patterns, nil
}
