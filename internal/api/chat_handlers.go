package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sissi0509/AI-study-buddy/internal/auth"
	"github.com/sissi0509/AI-study-buddy/internal/tutor"
)

// ChatHandler handles the tutoring conversation endpoints.
type ChatHandler struct {
	controller *tutor.Controller
}

// NewChatHandler creates the chat handler.
func NewChatHandler(controller *tutor.Controller) *ChatHandler {
	return &ChatHandler{controller: controller}
}

// RegisterRoutes registers the chat routes. Must be mounted inside
// RequireAuth.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Get("/topics/{tid}/chat", h.History)
	r.Post("/topics/{tid}/chat", h.Chat)
}

type chatRequest struct {
	Message      string `json:"message"`
	IsNewProblem bool   `json:"isNewProblem"`
}

type chatMessageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History returns the caller's conversation with the topic.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())

	msgs, err := h.controller.History(r.Context(), claims.UserID, chi.URLParam(r, "tid"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	out := make([]chatMessageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = chatMessageResponse{Role: m.Role, Content: m.Content}
	}
	JSON(w, http.StatusOK, map[string]any{"messages": out})
}

// Chat processes one student message and returns the tutor's reply.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())

	var req chatRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.controller.Chat(r.Context(), claims.UserID, chi.URLParam(r, "tid"), tutor.ChatRequest{
		Message:      req.Message,
		IsNewProblem: req.IsNewProblem,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"reply": reply.Reply})
}
