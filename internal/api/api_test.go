package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sissi0509/AI-study-buddy/internal/auth"
	"github.com/sissi0509/AI-study-buddy/internal/llm"
	"github.com/sissi0509/AI-study-buddy/internal/store"
	"github.com/sissi0509/AI-study-buddy/internal/tutor"
)

type testEnv struct {
	router chi.Router
	store  *store.Store
	mock   *llm.MockProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	st, err := store.Open(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mock := llm.NewMockProvider()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	controller := tutor.NewController(st.Sessions(), st.Topics(), mock, tutor.DefaultConfig())

	return &testEnv{
		router: NewRouter(st, issuer, controller),
		store:  st,
		mock:   mock,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// signup registers a user and returns the session cookie.
func (e *testEnv) signup(t *testing.T, name, email, role string) *http.Cookie {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": name, "email": email, "password": "password123", "role": role,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: status = %d, body = %s", email, rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("signup %s: no session cookie", email)
	return nil
}

func (e *testEnv) createTopic(t *testing.T) string {
	t.Helper()
	topic := &store.Topic{Name: "Free Fall", Steps: store.StringList{"Identify knowns"}}
	if err := e.store.Topics().Create(t.Context(), topic); err != nil {
		t.Fatalf("create topic: %v", err)
	}
	return topic.ID
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing name", map[string]string{"email": "a@b.c", "password": "password123"}, http.StatusBadRequest},
		{"short password", map[string]string{"name": "A", "email": "a@b.c", "password": "short"}, http.StatusBadRequest},
		{"bad role", map[string]string{"name": "A", "email": "a@b.c", "password": "password123", "role": "admin"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/signup", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	env.signup(t, "Ann", "ann@example.com", "student")
	rec := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Ann2", "email": "ann@example.com", "password": "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup = %d, want 409", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ann", "ann@example.com", "student")

	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ann@example.com", "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ann@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown email = %d, want 401", rec.Code)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@example.com", "teacher")

	rec := env.do(t, http.MethodGet, "/api/auth/me", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me = %d", rec.Code)
	}
	var user struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.Email != "ann@example.com" || user.Role != "teacher" {
		t.Errorf("me = %+v", user)
	}

	if rec := env.do(t, http.MethodGet, "/api/auth/me", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("me without cookie = %d, want 401", rec.Code)
	}
}

func TestChatRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	topicID := env.createTopic(t)

	rec := env.do(t, http.MethodPost, "/api/topics/"+topicID+"/chat", map[string]string{"message": "hi"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated chat = %d, want 401", rec.Code)
	}
	if env.mock.CallCount() != 0 {
		t.Error("provider called for unauthenticated request")
	}
}

func TestChatFlow(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@example.com", "student")
	topicID := env.createTopic(t)

	env.mock.AddResponse(llm.MockResponse{Content: json.RawMessage("What do we know so far?")})

	rec := env.do(t, http.MethodPost, "/api/topics/"+topicID+"/chat",
		map[string]any{"message": "A ball is dropped from 20 m"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Reply != "What do we know so far?" {
		t.Errorf("reply = %q", out.Reply)
	}

	rec = env.do(t, http.MethodGet, "/api/topics/"+topicID+"/chat", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	var hist struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Messages) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist.Messages))
	}
	if hist.Messages[0].Role != "user" || hist.Messages[1].Role != "assistant" {
		t.Errorf("history roles = %s/%s", hist.Messages[0].Role, hist.Messages[1].Role)
	}
}

func TestChatErrorStatuses(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@example.com", "student")
	topicID := env.createTopic(t)

	// Empty message.
	rec := env.do(t, http.MethodPost, "/api/topics/"+topicID+"/chat",
		map[string]string{"message": "  "}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message = %d, want 400", rec.Code)
	}

	// Unknown topic.
	rec = env.do(t, http.MethodPost, "/api/topics/no-such/chat",
		map[string]string{"message": "hi"}, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown topic = %d, want 404", rec.Code)
	}

	// Generation failure.
	env.mock.AddResponse(llm.MockResponse{Err: errors.New("boom")})
	rec = env.do(t, http.MethodPost, "/api/topics/"+topicID+"/chat",
		map[string]string{"message": "hi"}, cookie)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("generation failure = %d, want 502", rec.Code)
	}
}

func TestCatalogTeacherGuard(t *testing.T) {
	env := newTestEnv(t)
	student := env.signup(t, "Stu", "stu@example.com", "student")
	teacher := env.signup(t, "Tea", "tea@example.com", "teacher")

	body := map[string]string{"name": "Kinematics"}

	rec := env.do(t, http.MethodPost, "/api/chapters", body, student)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student create chapter = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/chapters", body, teacher)
	if rec.Code != http.StatusCreated {
		t.Fatalf("teacher create chapter = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ch struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ch); err != nil {
		t.Fatalf("decode chapter: %v", err)
	}
	if ch.ID == "" || ch.Name != "Kinematics" {
		t.Fatalf("chapter response = %s, want lowercase id/name keys", rec.Body.String())
	}

	// Students can read.
	rec = env.do(t, http.MethodGet, "/api/chapters", nil, student)
	if rec.Code != http.StatusOK {
		t.Errorf("student list chapters = %d, want 200", rec.Code)
	}

	// Topic creation under the chapter.
	rec = env.do(t, http.MethodPost, "/api/chapters/"+ch.ID+"/topics", map[string]any{
		"name":  "Free Fall",
		"steps": []string{"Identify knowns"},
	}, teacher)
	if rec.Code != http.StatusCreated {
		t.Errorf("teacher create topic = %d, body = %s", rec.Code, rec.Body.String())
	}
	var topic struct {
		ID        string   `json:"id"`
		ChapterID string   `json:"chapterId"`
		Steps     []string `json:"steps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &topic); err != nil {
		t.Fatalf("decode topic: %v", err)
	}
	if topic.ChapterID != ch.ID {
		t.Errorf("topic chapterId = %q, want %q", topic.ChapterID, ch.ID)
	}
	if len(topic.Steps) != 1 || topic.Steps[0] != "Identify knowns" {
		t.Errorf("topic steps = %v", topic.Steps)
	}

	// Deleting the chapter removes its topics.
	rec = env.do(t, http.MethodDelete, "/api/chapters/"+ch.ID, nil, teacher)
	if rec.Code != http.StatusOK {
		t.Errorf("delete chapter = %d", rec.Code)
	}
}
