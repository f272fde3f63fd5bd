package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sissi0509/AI-study-buddy/internal/llm"
	"github.com/sissi0509/AI-study-buddy/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	st, err := store.Open(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestController(t *testing.T, provider llm.Provider) (*Controller, *store.Store, string, string) {
	t.Helper()
	st := newTestStore(t)

	topic := &store.Topic{
		Name:      "Free Fall",
		Steps:     store.StringList{"Identify knowns", "Pick an equation"},
		KeyPoints: store.StringList{"g is constant"},
	}
	if err := st.Topics().Create(context.Background(), topic); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	ctrl := NewController(st.Sessions(), st.Topics(), provider, DefaultConfig())
	return ctrl, st, "student-1", topic.ID
}

// seedMessages appends n alternating user/assistant messages with
// recognizable content ("m0", "m1", ...) and returns the session.
func seedMessages(t *testing.T, st *store.Store, userID, topicID string, n int) *store.ChatSession {
	t.Helper()
	ctx := context.Background()

	sess, err := st.Sessions().LoadOrCreate(ctx, userID, topicID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	msgs := make([]store.ChatMessage, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs[i] = store.ChatMessage{Role: role, Content: fmt.Sprintf("m%d", i)}
	}
	if n > 0 {
		if err := st.Sessions().AppendMessages(ctx, sess.ID, msgs...); err != nil {
			t.Fatalf("seed messages: %v", err)
		}
	}
	return sess
}

func summaryResponse(text string) llm.MockResponse {
	return llm.MockResponse{Content: json.RawMessage(fmt.Sprintf(`{"summary": %q}`, text))}
}

func patternsResponse(text string) llm.MockResponse {
	return llm.MockResponse{Content: json.RawMessage(fmt.Sprintf(`{"patterns": %q}`, text))}
}

func replyResponse(text string, tokens int) llm.MockResponse {
	return llm.MockResponse{
		Content: json.RawMessage(text),
		Usage:   llm.Usage{TotalTokens: tokens},
	}
}

func TestChatFirstMessage(t *testing.T) {
	mock := llm.NewMockProvider(replyResponse("What do we know about the ball?", 42))
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	reply, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "A ball is dropped from 20 m"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Reply != "What do we know about the ball?" {
		t.Errorf("reply = %q", reply.Reply)
	}
	if mock.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (reply only)", mock.CallCount())
	}

	sess, err := st.Sessions().Find(ctx, userID, topicID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	msgs, err := st.Sessions().Messages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("message count = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Ordinal != 0 {
		t.Errorf("first message = %s/%d", msgs[0].Role, msgs[0].Ordinal)
	}
	if msgs[1].Role != "assistant" || msgs[1].Ordinal != 1 {
		t.Errorf("second message = %s/%d", msgs[1].Role, msgs[1].Ordinal)
	}
	if sess.CurrentProblemSummary != "" || sess.LearningPatterns != "" {
		t.Error("derived state set on first message")
	}
	if sess.TotalTokensUsed != 42 {
		t.Errorf("total tokens = %d, want 42", sess.TotalTokensUsed)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	mock := llm.NewMockProvider()
	ctrl, _, userID, topicID := newTestController(t, mock)

	_, err := ctrl.Chat(context.Background(), userID, topicID, ChatRequest{Message: "   "})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if mock.CallCount() != 0 {
		t.Errorf("provider called %d times for empty message", mock.CallCount())
	}
}

func TestChatUnknownTopic(t *testing.T) {
	mock := llm.NewMockProvider()
	ctrl, _, userID, _ := newTestController(t, mock)

	_, err := ctrl.Chat(context.Background(), userID, "no-such-topic", ChatRequest{Message: "hi"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestChatBelowSummarizeThreshold(t *testing.T) {
	// 13 stored + 1 incoming = 14 < 15: no summarization yet.
	mock := llm.NewMockProvider(replyResponse("keep going", 0))
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seedMessages(t, st, userID, topicID, 13)

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "what next?"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (no summarizer)", mock.CallCount())
	}

	sess, _ := st.Sessions().Find(ctx, userID, topicID)
	if sess.CurrentProblemSummary != "" {
		t.Errorf("summary = %q, want empty", sess.CurrentProblemSummary)
	}
	if sess.LastProblemSummarizedIndex != 0 {
		t.Errorf("lastSummarized = %d, want 0", sess.LastProblemSummarizedIndex)
	}
}

func TestChatSummarizeAtThreshold(t *testing.T) {
	// 14 stored + 1 incoming = 15: summarize messages [0:9], keep the
	// recent 6 verbatim.
	mock := llm.NewMockProvider(
		summaryResponse("Student is solving a 20 m drop, currently finding t."),
		replyResponse("Good, now plug in g.", 42),
	)
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 14)

	reply, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "so t is 2 seconds?"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Reply != "Good, now plug in g." {
		t.Errorf("reply = %q", reply.Reply)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("provider calls = %d, want 2 (summary + reply)", mock.CallCount())
	}

	// First call is the summarizer, over messages 0..8 only.
	sumCall := mock.Calls[0]
	if sumCall.Schema == nil || sumCall.Schema.Name != "problem-progress" {
		t.Errorf("first call schema = %v, want problem-progress", sumCall.Schema)
	}
	body := sumCall.Messages[0].Content
	if !strings.Contains(body, "m8") {
		t.Error("summarizer slice missing message m8")
	}
	if strings.Contains(body, "m9") {
		t.Error("summarizer slice includes recent-tail message m9")
	}

	// Reply call carries the fresh summary and the recent tail.
	replyCall := mock.Calls[1]
	if replyCall.Schema != nil {
		t.Error("reply call has a schema")
	}
	prompt := replyCall.Messages[0].Content
	if !strings.Contains(prompt, "[Current Problem Progress]:") {
		t.Error("reply prompt missing progress section")
	}
	if !strings.Contains(prompt, "currently finding t") {
		t.Error("reply prompt missing summary text")
	}
	if !strings.Contains(prompt, "m9") || strings.Contains(prompt, "m8") {
		t.Error("reply prompt recent tail wrong: want m9.. present, m8 absent")
	}

	sess, _ := st.Sessions().Get(ctx, seed.ID)
	if sess.CurrentProblemSummary == "" {
		t.Error("summary not persisted")
	}
	if sess.LastProblemSummarizedIndex != 9 {
		t.Errorf("lastSummarized = %d, want 9", sess.LastProblemSummarizedIndex)
	}
	if sess.PatternsVersion != 0 {
		t.Errorf("patternsVersion = %d, want 0", sess.PatternsVersion)
	}
	// Only the reply call's tokens count toward the session total.
	if sess.TotalTokensUsed != 42 {
		t.Errorf("total tokens = %d, want 42", sess.TotalTokensUsed)
	}

	count, _ := st.Sessions().MessageCount(ctx, seed.ID)
	if count != 16 {
		t.Errorf("message count = %d, want 16", count)
	}
}

func TestChatLongContinuation(t *testing.T) {
	// 20 stored + 1 incoming = 21 messages, no new-problem signal:
	// the summarizer covers [0:15], the refiner stays quiet (21 < 25).
	mock := llm.NewMockProvider(
		summaryResponse("Twenty messages in, still the same incline problem."),
		replyResponse("What about friction?", 0),
	)
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 20)

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "what's the next step?"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("provider calls = %d, want 2 (summary + reply, no refine)", mock.CallCount())
	}

	body := mock.Calls[0].Messages[0].Content
	if !strings.Contains(body, "m14") || strings.Contains(body, "m15") {
		t.Error("summarizer slice should cover messages 0..14 only")
	}

	sess, _ := st.Sessions().Get(ctx, seed.ID)
	if sess.LastProblemSummarizedIndex != 15 {
		t.Errorf("lastSummarized = %d, want 15", sess.LastProblemSummarizedIndex)
	}
	if sess.PatternsVersion != 0 {
		t.Errorf("patternsVersion = %d, want 0", sess.PatternsVersion)
	}

	count, _ := st.Sessions().MessageCount(ctx, seed.ID)
	if count != 22 {
		t.Errorf("message count = %d, want 22", count)
	}
}

func TestChatNewProblemKeyword(t *testing.T) {
	// 6 stored + 1 incoming = 7-message completed problem (>= 5):
	// patterns are refined and the problem window resets.
	mock := llm.NewMockProvider(
		patternsResponse("Solid algebra, hesitates choosing equations."),
		replyResponse("Sure, here is a fresh one.", 10),
	)
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 6)

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "can we do another problem?"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("provider calls = %d, want 2 (refine + reply)", mock.CallCount())
	}

	// Cold start: no previous profile, initial-analysis prompt.
	refineCall := mock.Calls[0]
	if refineCall.Schema == nil || refineCall.Schema.Name != "learning-patterns" {
		t.Errorf("first call schema = %v, want learning-patterns", refineCall.Schema)
	}
	if !strings.Contains(refineCall.System, "first") {
		t.Errorf("expected initial-analysis system prompt, got %q", refineCall.System)
	}

	sess, _ := st.Sessions().Get(ctx, seed.ID)
	if sess.LearningPatterns != "Solid algebra, hesitates choosing equations." {
		t.Errorf("patterns = %q", sess.LearningPatterns)
	}
	if sess.PatternsVersion != 1 {
		t.Errorf("patternsVersion = %d, want 1", sess.PatternsVersion)
	}
	if sess.ProblemsAttempted != 1 {
		t.Errorf("problemsAttempted = %d, want 1", sess.ProblemsAttempted)
	}
	if sess.CurrentProblemSummary != "" {
		t.Errorf("summary = %q, want cleared", sess.CurrentProblemSummary)
	}
	if sess.CurrentProblemStartIndex != 7 || sess.LastProblemSummarizedIndex != 7 || sess.LastPatternsAnalyzedIndex != 7 {
		t.Errorf("indices = %d/%d/%d, want 7/7/7",
			sess.CurrentProblemStartIndex, sess.LastProblemSummarizedIndex, sess.LastPatternsAnalyzedIndex)
	}
}

func TestChatNewProblemIterativeRefine(t *testing.T) {
	// With an existing profile the refiner gets the previous patterns
	// and the update-style prompt.
	mock := llm.NewMockProvider(
		patternsResponse("Now confident choosing equations."),
		replyResponse("Here is the next one.", 0),
	)
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 6)
	prev := "Hesitates choosing equations."
	if err := st.Sessions().ApplyUpdate(ctx, seed.ID, store.SessionUpdate{LearningPatterns: &prev}); err != nil {
		t.Fatalf("seed patterns: %v", err)
	}

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "next problem please"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	refineCall := mock.Calls[0]
	if !strings.Contains(refineCall.Messages[0].Content, "PREVIOUS LEARNING PATTERNS") {
		t.Error("iterative refine prompt missing previous-patterns block")
	}
	if !strings.Contains(refineCall.Messages[0].Content, prev) {
		t.Error("iterative refine prompt missing previous profile text")
	}

	sess, _ := st.Sessions().Get(ctx, seed.ID)
	if sess.LearningPatterns != "Now confident choosing equations." {
		t.Errorf("patterns not replaced: %q", sess.LearningPatterns)
	}
}

func TestChatNewProblemTooShort(t *testing.T) {
	// A 3-message problem is below the minimum: indices reset, but no
	// refinement call and no counter increments.
	mock := llm.NewMockProvider(replyResponse("Fresh start.", 0))
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 2)

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "ok", IsNewProblem: true}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (reply only)", mock.CallCount())
	}

	sess, _ := st.Sessions().Get(ctx, seed.ID)
	if sess.PatternsVersion != 0 || sess.ProblemsAttempted != 0 {
		t.Errorf("counters bumped on short problem: version=%d attempted=%d",
			sess.PatternsVersion, sess.ProblemsAttempted)
	}
	if sess.LearningPatterns != "" {
		t.Errorf("patterns changed: %q", sess.LearningPatterns)
	}
	if sess.CurrentProblemStartIndex != 3 || sess.LastProblemSummarizedIndex != 3 || sess.LastPatternsAnalyzedIndex != 3 {
		t.Errorf("indices = %d/%d/%d, want 3/3/3",
			sess.CurrentProblemStartIndex, sess.LastProblemSummarizedIndex, sess.LastPatternsAnalyzedIndex)
	}
}

func TestChatMidProblemRefine(t *testing.T) {
	// 24 stored + 1 incoming = 25 messages in one problem: patterns
	// refine mid-problem without closing the window.
	mock := llm.NewMockProvider(
		patternsResponse("Persistent sign errors in projectile setups."),
		replyResponse("Check the sign of g.", 0),
	)
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 24)
	// Pretend a summary just ran so only the refiner fires this turn.
	idx := 24
	if err := st.Sessions().ApplyUpdate(ctx, seed.ID, store.SessionUpdate{LastProblemSummarizedIndex: &idx}); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "still stuck"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("provider calls = %d, want 2 (refine + reply)", mock.CallCount())
	}

	sess, _ := st.Sessions().Get(ctx, seed.ID)
	if sess.PatternsVersion != 1 {
		t.Errorf("patternsVersion = %d, want 1", sess.PatternsVersion)
	}
	if sess.LastPatternsAnalyzedIndex != 19 {
		t.Errorf("lastAnalyzed = %d, want 19", sess.LastPatternsAnalyzedIndex)
	}
	// The problem is still open.
	if sess.CurrentProblemStartIndex != 0 {
		t.Errorf("start index = %d, want 0", sess.CurrentProblemStartIndex)
	}
	if sess.ProblemsAttempted != 0 {
		t.Errorf("problemsAttempted = %d, want 0", sess.ProblemsAttempted)
	}
}

func TestChatMidProblemRefineNotRepeated(t *testing.T) {
	// Once refined at message 19, the next turn is 25-19=6 < 25 since
	// the last analysis: no second refinement.
	mock := llm.NewMockProvider(replyResponse("Keep at it.", 0))
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 25)
	sumIdx, anaIdx := 25, 19
	err := st.Sessions().ApplyUpdate(ctx, seed.ID, store.SessionUpdate{
		LastProblemSummarizedIndex: &sumIdx,
		LastPatternsAnalyzedIndex:  &anaIdx,
	})
	if err != nil {
		t.Fatalf("seed indices: %v", err)
	}

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "one more try"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (reply only)", mock.CallCount())
	}
}

func TestChatReplyFailureAppendsNothing(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")})
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	_, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "hello"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Stage != "reply" {
		t.Fatalf("err = %v, want GenerationError{reply}", err)
	}

	sess, err := st.Sessions().Find(ctx, userID, topicID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	count, _ := st.Sessions().MessageCount(ctx, sess.ID)
	if count != 0 {
		t.Errorf("message count = %d, want 0 after failed turn", count)
	}
}

// stallProvider blocks until the request context expires, standing in
// for a provider that never answers.
type stallProvider struct{}

func (stallProvider) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallProvider) ModelID() string { return "stall" }

func TestChatGenerationTimeout(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	topic := &store.Topic{Name: "Free Fall"}
	if err := st.Topics().Create(ctx, topic); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	cfg := DefaultConfig()
	cfg.GenerationTimeout = 5 * time.Millisecond
	ctrl := NewController(st.Sessions(), st.Topics(), stallProvider{}, cfg)

	_, err := ctrl.Chat(ctx, "student-1", topic.ID, ChatRequest{Message: "A ball is dropped from 20 m"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Stage != "reply" {
		t.Fatalf("err = %v, want GenerationError{reply}", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}

	sess, err := st.Sessions().Find(ctx, "student-1", topic.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	count, _ := st.Sessions().MessageCount(ctx, sess.ID)
	if count != 0 {
		t.Errorf("message count = %d, want 0 after timed-out turn", count)
	}
}

func TestChatSummarizeFailureAbortsTurn(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")})
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 14)

	_, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "what now?"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Stage != "progress-summary" {
		t.Fatalf("err = %v, want GenerationError{progress-summary}", err)
	}

	count, _ := st.Sessions().MessageCount(ctx, seed.ID)
	if count != 14 {
		t.Errorf("message count = %d, want unchanged 14", count)
	}
	sess, _ := st.Sessions().Get(ctx, seed.ID)
	if sess.CurrentProblemSummary != "" {
		t.Errorf("summary persisted despite failure: %q", sess.CurrentProblemSummary)
	}
}

func TestChatPromptCarriesStoredState(t *testing.T) {
	mock := llm.NewMockProvider(replyResponse("And then?", 0))
	ctrl, st, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	seed := seedMessages(t, st, userID, topicID, 4)
	patterns := "Struggles with unit conversion."
	summary := "Working on a pendulum period problem."
	err := st.Sessions().ApplyUpdate(ctx, seed.ID, store.SessionUpdate{
		LearningPatterns:      &patterns,
		CurrentProblemSummary: &summary,
	})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "I measured 2 s"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	prompt := mock.Calls[0].Messages[0].Content
	if !strings.Contains(prompt, patterns) {
		t.Error("prompt missing stored learning patterns")
	}
	if !strings.Contains(prompt, summary) {
		t.Error("prompt missing stored problem summary")
	}
	if !strings.Contains(prompt, "I measured 2 s") {
		t.Error("prompt missing incoming message")
	}
}

func TestHistory(t *testing.T) {
	mock := llm.NewMockProvider(replyResponse("Hi there.", 0))
	ctrl, _, userID, topicID := newTestController(t, mock)
	ctx := context.Background()

	msgs, err := ctrl.History(ctx, userID, topicID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("history before any chat = %d messages", len(msgs))
	}

	if _, err := ctrl.Chat(ctx, userID, topicID, ChatRequest{Message: "hello"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	msgs, err = ctrl.History(ctx, userID, topicID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("history = %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "Hi there." {
		t.Errorf("history contents = %q, %q", msgs[0].Content, msgs[1].Content)
	}
}
