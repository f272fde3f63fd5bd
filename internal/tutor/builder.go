package tutor

import (
	"fmt"
	"strings"
)

// BuildTutorPrompt renders the full instruction text for the tutoring
// reply. Pure function: identical inputs produce byte-identical output.
// Sections appear in fixed order - base instructions, learning
// patterns (if any), problem progress (if any), recent conversation,
// closing instruction.
func BuildTutorPrompt(topic TopicContent, learningPatterns, currentProblemSummary string, recent []Message) string {
	var b strings.Builder

	b.WriteString(buildSystemSection(topic))

	if learningPatterns != "" {
		b.WriteString("\n\n[Student's Learning Patterns]:\n")
		b.WriteString(learningPatterns)
	}

	if currentProblemSummary != "" {
		b.WriteString("\n\n[Current Problem Progress]:\n")
		b.WriteString(currentProblemSummary)
	}

	b.WriteString("\n\nRecent Conversation:\n")
	b.WriteString(renderConversation(recent))

	b.WriteString("\n\nRemember: Guide through questions, never give the final answer directly.")

	return b.String()
}

// buildSystemSection renders the teacher-authored topic material into
// base tutoring instructions.
func buildSystemSection(topic TopicContent) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are a patient tutor helping a student with %q.\n", topic.Name))
	b.WriteString("Guide the student step-by-step using Socratic questioning: ask one question at a time, encourage the student to think, and never reveal the final answer unprompted.")

	if len(topic.Steps) > 0 {
		b.WriteString("\n\nProblem-solving steps to walk through, in order:\n")
		for i, step := range topic.Steps {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
		}
	}

	if len(topic.KeyPoints) > 0 {
		b.WriteString("\nKey points the student must understand:\n")
		for _, kp := range topic.KeyPoints {
			b.WriteString(fmt.Sprintf("- %s\n", kp))
		}
	}

	if len(topic.CommonMistakes) > 0 {
		b.WriteString("\nCommon mistakes to watch for:\n")
		for _, cm := range topic.CommonMistakes {
			b.WriteString(fmt.Sprintf("- %s\n", cm))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
