package tutor

import "github.com/sissi0509/AI-study-buddy/internal/llm"

// ProgressSummarySchema defines the JSON schema for problem-progress
// summarization.
var ProgressSummarySchema = &llm.Schema{
	Name:        "problem-progress",
	Description: "Factual recap of the in-progress problem",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "2-3 sentence factual summary of the current problem and progress",
			},
		},
		"required":             []any{"summary"},
		"additionalProperties": false,
	},
}

// LearningPatternsSchema defines the JSON schema for learning-pattern
// refinement.
var LearningPatternsSchema = &llm.Schema{
	Name:        "learning-patterns",
	Description: "Refined profile of the student's recurring strengths and weaknesses",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"patterns": map[string]any{
				"type":        "string",
				"description": "3-4 concise sentences describing the student's learning patterns",
			},
		},
		"required":             []any{"patterns"},
		"additionalProperties": false,
	},
}
