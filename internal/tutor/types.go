// Package tutor implements the conversation-context controller behind
// the AI tutor: new-problem detection, problem-progress summarization,
// iterative learning-pattern refinement, and prompt assembly.
package tutor

import "github.com/sissi0509/AI-study-buddy/internal/store"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's conversation.
type Message struct {
	Role    Role
	Content string
}

// TopicContent is the teacher-authored material a tutor prompt is
// built from.
type TopicContent struct {
	Name           string
	Steps          []string
	KeyPoints      []string
	CommonMistakes []string
}

// topicContent converts a stored topic to prompt material.
func topicContent(t *store.Topic) TopicContent {
	return TopicContent{
		Name:           t.Name,
		Steps:          t.Steps,
		KeyPoints:      t.KeyPoints,
		CommonMistakes: t.CommonMistakes,
	}
}

// fromStored converts stored messages to conversation messages,
// preserving order.
func fromStored(msgs []store.ChatMessage) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: Role(m.Role), Content: m.Content}
	}
	return out
}

// sliceRange returns msgs[start:end] with both bounds clamped to the
// valid range. Indices come from persisted counters, so they are
// trusted to be non-decreasing but not to fit the current list.
func sliceRange(msgs []Message, start, end int) []Message {
	if start < 0 {
		start = 0
	}
	if end > len(msgs) {
		end = len(msgs)
	}
	if start >= end {
		return nil
	}
	return msgs[start:end]
}

// tail returns the last n messages.
func tail(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
