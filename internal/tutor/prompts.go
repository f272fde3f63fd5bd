package tutor

import (
	"fmt"
	"strings"
)

// renderConversation formats messages as role-labeled lines.
func renderConversation(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.ToUpper(string(m.Role)))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

const progressSystemPrompt = `You are summarizing a student's progress on a single physics problem. Produce a short factual recap used internally to keep the tutoring context bounded.`

func buildProgressUserMessage(msgs []Message, topicName string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Topic: %s\n\n", topicName))
	b.WriteString("Conversation:\n")
	b.WriteString(renderConversation(msgs))

	b.WriteString(`

Instructions:
Summarize the current problem-solving progress in 2-3 sentences. Focus on:
1. What is the specific problem being solved (numbers, context)
2. What has the student already figured out or established
3. What step they are currently working on

DO NOT include: mistakes, learning patterns, or pedagogical notes - just factual progress.`)

	return b.String()
}

const initialPatternsSystemPrompt = `You are analyzing a student's first physics problem-solving session to extract initial learning patterns for a tutoring system.`

const refinePatternsSystemPrompt = `You are refining your understanding of a student's learning patterns in physics. You hold an earlier profile and new evidence; produce the updated profile.`

func buildInitialPatternsUserMessage(msgs []Message, topicName string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Topic: %s\n\n", topicName))
	b.WriteString("FIRST PROBLEM SESSION:\n")
	b.WriteString(renderConversation(msgs))

	b.WriteString(`

Instructions:
Focus on:
1. What problem-solving skills the student demonstrated
2. What mistakes the student made (if repeated, note as potential pattern)
3. What concepts the student struggled with
4. What types of hints seemed to help

Write 3-4 concise sentences about initial observations. Phrase single-occurrence issues cautiously - they are not yet patterns.`)

	return b.String()
}

func buildRefinePatternsUserMessage(msgs []Message, previousPatterns, topicName string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Topic: %s\n\n", topicName))
	b.WriteString("PREVIOUS LEARNING PATTERNS (from earlier problems):\n")
	b.WriteString(previousPatterns)
	b.WriteString("\n\nNEW PROBLEM SESSION (just completed):\n")
	b.WriteString(renderConversation(msgs))

	b.WriteString(`

Task: Update and refine the learning patterns based on this new evidence.
- CONFIRM patterns that appear again (e.g., "still struggles with...")
- UPDATE patterns if the student has improved (e.g., "previously struggled with X, now showing mastery")
- ADD new patterns if you notice new consistent behaviors
- REMOVE patterns if they no longer apply

Focus on:
1. What problem-solving skills the student has MASTERED (confirmed or newly observed)
2. What mistakes the student REPEATEDLY makes (patterns, not one-time errors)
3. What concepts the student STRUGGLES with consistently
4. What types of hints work best for this student

Write 3-4 concise sentences that represent your UPDATED understanding.`)

	return b.String()
}
