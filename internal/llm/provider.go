package llm

import (
	"context"
	"encoding/json"
)

// Provider is the generation capability behind the tutor: one
// implementation per vendor, all hidden behind the same call shape.
type Provider interface {
	// Generate runs one completion. With a Schema set, the provider
	// uses its native structured-output mechanism and Content comes
	// back as validated JSON; without one, Content is the raw reply
	// text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model this provider is configured to use.
	ModelID() string
}

// Request describes one generation call.
type Request struct {
	// System sets the model's role and constraints.
	System string

	// Messages is the conversation to complete. Summarization and
	// pattern refinement send a single user message; tutor replies
	// send the assembled prompt the same way.
	Messages []Message

	// Schema, when set, constrains the output to a JSON shape.
	Schema *Schema

	// MaxTokens caps the response length.
	MaxTokens int

	// Temperature controls randomness, 0.0 (deterministic) to 1.0.
	Temperature float64
}

// Message is one turn of conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a JSON Schema the model output must conform to.
type Schema struct {
	// Name identifies the schema. Kebab-case; it doubles as the
	// OpenAI response-format name and the compile-cache key.
	Name string

	// Description tells the model what the shape represents.
	Description string

	// Definition is the JSON Schema as a map.
	Definition map[string]any
}

// Response is the model's output.
type Response struct {
	// Content is validated JSON when the request carried a Schema,
	// raw reply text otherwise.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
