package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sissi0509/AI-study-buddy/internal/llm"
	"github.com/sissi0509/AI-study-buddy/internal/store"
)

// ChatRequest is one incoming student message.
type ChatRequest struct {
	Message      string
	IsNewProblem bool
}

// ChatReply is the tutor's answer for one turn.
type ChatReply struct {
	Reply string
}

// Controller is the per-message state machine: detect a new problem,
// update derived context as thresholds dictate, assemble the prompt,
// generate the reply, and persist the turn.
//
// Processing for the same (student, topic) pair is serialized; derived
// state updates commit independently, and the conversation-log append
// is the final all-or-nothing step of a turn.
type Controller struct {
	sessions   *store.SessionRepo
	topics     *store.TopicRepo
	provider   llm.Provider
	summarizer *Summarizer
	refiner    *Refiner
	cfg        Config
	locks      *sessionLocks
}

// NewController wires the context-management pipeline.
func NewController(sessions *store.SessionRepo, topics *store.TopicRepo, provider llm.Provider, cfg Config) *Controller {
	return &Controller{
		sessions:   sessions,
		topics:     topics,
		provider:   provider,
		summarizer: NewSummarizer(provider, cfg),
		refiner:    NewRefiner(provider, cfg),
		cfg:        cfg,
		locks:      newSessionLocks(),
	}
}

// History returns the caller's conversation with the topic. An empty
// log is returned when no session exists yet.
func (c *Controller) History(ctx context.Context, userID, topicID string) ([]store.ChatMessage, error) {
	sess, err := c.sessions.Find(ctx, userID, topicID)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.sessions.Messages(ctx, sess.ID)
}

// Chat processes one student message to completion and returns the
// tutor's reply.
func (c *Controller) Chat(ctx context.Context, userID, topicID string, req ChatRequest) (*ChatReply, error) {
	userMessage := strings.TrimSpace(req.Message)
	if userMessage == "" {
		return nil, ErrEmptyMessage
	}

	topic, err := c.topics.Get(ctx, topicID)
	if err != nil {
		return nil, err
	}

	// Serialize per session: two concurrent turns for the same pair
	// must not interleave their read-update-append sequences.
	release := c.locks.acquire(userID + "\x00" + topicID)
	defer release()

	sess, err := c.sessions.LoadOrCreate(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	stored, err := c.sessions.Messages(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	msgs := append(fromStored(stored), Message{Role: RoleUser, Content: userMessage})
	total := len(msgs)

	summary := sess.CurrentProblemSummary
	patterns := sess.LearningPatterns

	if DetectNewProblem(msgs, req.IsNewProblem) {
		patterns, summary, err = c.handleNewProblem(ctx, sess, msgs, topic.Name, total)
		if err != nil {
			return nil, err
		}
	} else {
		summary, err = c.maybeSummarizeProgress(ctx, sess, msgs, topic.Name, total, summary)
		if err != nil {
			return nil, err
		}
		patterns, err = c.maybeRefineMidProblem(ctx, sess, msgs, topic.Name, total, patterns)
		if err != nil {
			return nil, err
		}
	}

	prompt := BuildTutorPrompt(topicContent(topic), patterns, summary, tail(msgs, c.cfg.RecentMessagesCount))

	reply, usage, err := c.generateReply(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// The final, all-or-nothing step: both sides of the turn land in
	// the log or neither does.
	err = c.sessions.AppendMessages(ctx, sess.ID,
		store.ChatMessage{Role: string(RoleUser), Content: userMessage},
		store.ChatMessage{Role: string(RoleAssistant), Content: reply},
	)
	if err != nil {
		return nil, err
	}

	if usage.TotalTokens > 0 {
		upd := store.SessionUpdate{IncTotalTokensUsed: int64(usage.TotalTokens)}
		if err := c.sessions.ApplyUpdate(ctx, sess.ID, upd); err != nil {
			log.Warn().Err(err).Str("session", sess.ID).Msg("failed to record token usage")
		}
	}

	log.Debug().
		Str("session", sess.ID).
		Int("messages", total+1).
		Msg("chat turn completed")

	return &ChatReply{Reply: reply}, nil
}

// handleNewProblem runs the confirmed new-problem transition: refine
// patterns over the just-completed problem and reset the per-problem
// tracking to the new boundary. A completed-but-short problem still
// ends the current-problem window, just without new pattern evidence.
func (c *Controller) handleNewProblem(ctx context.Context, sess *store.ChatSession, msgs []Message, topicName string, total int) (patterns, summary string, err error) {
	completed := sliceRange(msgs, sess.CurrentProblemStartIndex, total)

	empty := ""
	upd := store.SessionUpdate{
		CurrentProblemSummary:      &empty,
		CurrentProblemStartIndex:   &total,
		LastProblemSummarizedIndex: &total,
		LastPatternsAnalyzedIndex:  &total,
	}

	if len(completed) < c.cfg.MinMessagesForSummary {
		if err := c.sessions.ApplyUpdate(ctx, sess.ID, upd); err != nil {
			return "", "", err
		}
		return sess.LearningPatterns, "", nil
	}

	refined, err := c.refinePatterns(ctx, completed, sess.LearningPatterns, topicName)
	if err != nil {
		return "", "", err
	}

	upd.LearningPatterns = &refined
	upd.IncProblemsAttempted = 1
	upd.IncPatternsVersion = 1
	if err := c.sessions.ApplyUpdate(ctx, sess.ID, upd); err != nil {
		return "", "", err
	}

	log.Info().
		Str("session", sess.ID).
		Int("boundary", total).
		Msg("new problem: patterns refined, tracking reset")

	return refined, "", nil
}

// maybeSummarizeProgress refreshes the problem-progress summary when
// enough messages have accumulated since the last one. The recent tail
// stays out of the slice so it remains visible verbatim in the prompt.
func (c *Controller) maybeSummarizeProgress(ctx context.Context, sess *store.ChatSession, msgs []Message, topicName string, total int, current string) (string, error) {
	if total-sess.LastProblemSummarizedIndex < c.cfg.SummarizeProblemEvery {
		return current, nil
	}

	end := total - c.cfg.RecentMessagesCount
	slice := sliceRange(msgs, sess.CurrentProblemStartIndex, end)
	if len(slice) < c.cfg.MinMessagesForSummary {
		return current, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()

	summary, err := c.summarizer.SummarizeProgress(genCtx, slice, topicName)
	if err != nil {
		return "", &GenerationError{Stage: "progress-summary", Err: err}
	}

	upd := store.SessionUpdate{
		CurrentProblemSummary:      &summary,
		LastProblemSummarizedIndex: &end,
	}
	if err := c.sessions.ApplyUpdate(ctx, sess.ID, upd); err != nil {
		return "", err
	}

	log.Info().Str("session", sess.ID).Int("through", end).Msg("problem progress summarized")
	return summary, nil
}

// maybeRefineMidProblem refines the learning patterns during an
// unusually long problem, without closing the problem window.
func (c *Controller) maybeRefineMidProblem(ctx context.Context, sess *store.ChatSession, msgs []Message, topicName string, total int, current string) (string, error) {
	inProblem := total - sess.CurrentProblemStartIndex
	sinceAnalysis := total - sess.LastPatternsAnalyzedIndex

	if inProblem < c.cfg.RefinePatternsThreshold || sinceAnalysis < c.cfg.RefinePatternsThreshold {
		return current, nil
	}

	end := total - c.cfg.RecentMessagesCount
	slice := sliceRange(msgs, sess.LastPatternsAnalyzedIndex, end)
	if len(slice) < c.cfg.MinMessagesForSummary {
		return current, nil
	}

	log.Info().
		Str("session", sess.ID).
		Int("problem_messages", inProblem).
		Msg("long problem, refining patterns mid-problem")

	refined, err := c.refinePatterns(ctx, slice, sess.LearningPatterns, topicName)
	if err != nil {
		return "", err
	}

	upd := store.SessionUpdate{
		LearningPatterns:          &refined,
		LastPatternsAnalyzedIndex: &end,
		IncPatternsVersion:        1,
	}
	if err := c.sessions.ApplyUpdate(ctx, sess.ID, upd); err != nil {
		return "", err
	}

	return refined, nil
}

func (c *Controller) refinePatterns(ctx context.Context, slice []Message, previous, topicName string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()

	refined, err := c.refiner.RefinePatterns(genCtx, slice, previous, topicName)
	if err != nil {
		return "", &GenerationError{Stage: "pattern-refine", Err: err}
	}
	return refined, nil
}

// generateReply makes the final generation call for the tutoring reply.
func (c *Controller) generateReply(ctx context.Context, prompt string) (string, llm.Usage, error) {
	genCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancel()
	genCtx = llm.WithPurpose(genCtx, llm.PurposeTutorReply)

	resp, err := c.provider.Generate(genCtx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	if err != nil {
		return "", llm.Usage{}, &GenerationError{Stage: "reply", Err: err}
	}

	reply := strings.TrimSpace(string(resp.Content))
	if reply == "" {
		return "", llm.Usage{}, &GenerationError{
			Stage: "reply",
			Err:   fmt.Errorf("empty reply from provider"),
		}
	}

	return reply, resp.Usage, nil
}
