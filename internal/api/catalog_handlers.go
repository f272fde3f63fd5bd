package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sissi0509/AI-study-buddy/internal/auth"
	"github.com/sissi0509/AI-study-buddy/internal/store"
)

// CatalogHandler handles chapter and topic endpoints. All routes
// require authentication; mutations additionally require the teacher
// role.
type CatalogHandler struct {
	chapters *store.ChapterRepo
	topics   *store.TopicRepo
}

// NewCatalogHandler creates the catalog handler.
func NewCatalogHandler(chapters *store.ChapterRepo, topics *store.TopicRepo) *CatalogHandler {
	return &CatalogHandler{chapters: chapters, topics: topics}
}

// RegisterRoutes registers the catalog routes. Must be mounted inside
// RequireAuth.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	teacherOnly := auth.RequireRole("teacher")

	r.Route("/chapters", func(r chi.Router) {
		r.Get("/", h.ListChapters)
		r.With(teacherOnly).Post("/", h.CreateChapter)
		r.Route("/{cid}", func(r chi.Router) {
			r.Get("/", h.GetChapter)
			r.With(teacherOnly).Put("/", h.UpdateChapter)
			r.With(teacherOnly).Delete("/", h.DeleteChapter)
			r.Get("/topics", h.ListTopics)
			r.With(teacherOnly).Post("/topics", h.CreateTopic)
		})
	})

	// Flat, not a subrouter: the chat handler adds its own routes
	// under /topics/{tid}.
	r.Get("/topics/{tid}", h.GetTopic)
	r.With(teacherOnly).Put("/topics/{tid}", h.UpdateTopic)
	r.With(teacherOnly).Delete("/topics/{tid}", h.DeleteTopic)
}

type chapterRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

type chapterResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

func toChapterResponse(ch *store.Chapter) chapterResponse {
	return chapterResponse{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Subject:     ch.Subject,
	}
}

// ListChapters returns all chapters.
func (h *CatalogHandler) ListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := h.chapters.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	out := make([]chapterResponse, len(chapters))
	for i := range chapters {
		out[i] = toChapterResponse(&chapters[i])
	}
	JSON(w, http.StatusOK, out)
}

// CreateChapter adds a chapter.
func (h *CatalogHandler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterRequest
	if err := decode(r, &req); err != nil || req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	ch := &store.Chapter{Name: req.Name, Description: req.Description, Subject: req.Subject}
	if err := h.chapters.Create(r.Context(), ch); err != nil {
		handleError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, toChapterResponse(ch))
}

// GetChapter returns one chapter.
func (h *CatalogHandler) GetChapter(w http.ResponseWriter, r *http.Request) {
	ch, err := h.chapters.Get(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, toChapterResponse(ch))
}

// UpdateChapter replaces a chapter's fields.
func (h *CatalogHandler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterRequest
	if err := decode(r, &req); err != nil || req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	ch := &store.Chapter{ID: chi.URLParam(r, "cid"), Name: req.Name, Description: req.Description, Subject: req.Subject}
	if err := h.chapters.Update(r.Context(), ch); err != nil {
		handleError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, toChapterResponse(ch))
}

// DeleteChapter removes a chapter and its topics.
func (h *CatalogHandler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	if err := h.chapters.Delete(r.Context(), chi.URLParam(r, "cid")); err != nil {
		handleError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type topicRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Subject        string   `json:"subject"`
	Steps          []string `json:"steps"`
	KeyPoints      []string `json:"keyPoints"`
	CommonMistakes []string `json:"commonMistakes"`
}

type topicResponse struct {
	ID             string   `json:"id"`
	ChapterID      string   `json:"chapterId"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Subject        string   `json:"subject"`
	Steps          []string `json:"steps"`
	KeyPoints      []string `json:"keyPoints"`
	CommonMistakes []string `json:"commonMistakes"`
}

func toTopicResponse(t *store.Topic) topicResponse {
	return topicResponse{
		ID:             t.ID,
		ChapterID:      t.ChapterID,
		Name:           t.Name,
		Description:    t.Description,
		Subject:        t.Subject,
		Steps:          t.Steps,
		KeyPoints:      t.KeyPoints,
		CommonMistakes: t.CommonMistakes,
	}
}

// ListTopics returns the topics of a chapter.
func (h *CatalogHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topics.ListByChapter(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	out := make([]topicResponse, len(topics))
	for i := range topics {
		out[i] = toTopicResponse(&topics[i])
	}
	JSON(w, http.StatusOK, out)
}

// CreateTopic adds a topic to a chapter.
func (h *CatalogHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "cid")
	if _, err := h.chapters.Get(r.Context(), chapterID); err != nil {
		handleError(w, r, err)
		return
	}

	var req topicRequest
	if err := decode(r, &req); err != nil || req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	topic := &store.Topic{
		ChapterID:      chapterID,
		Name:           req.Name,
		Description:    req.Description,
		Subject:        req.Subject,
		Steps:          req.Steps,
		KeyPoints:      req.KeyPoints,
		CommonMistakes: req.CommonMistakes,
	}
	if err := h.topics.Create(r.Context(), topic); err != nil {
		handleError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, toTopicResponse(topic))
}

// GetTopic returns one topic.
func (h *CatalogHandler) GetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := h.topics.Get(r.Context(), chi.URLParam(r, "tid"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, toTopicResponse(topic))
}

// UpdateTopic replaces a topic's fields.
func (h *CatalogHandler) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	existing, err := h.topics.Get(r.Context(), chi.URLParam(r, "tid"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req topicRequest
	if err := decode(r, &req); err != nil || req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	topic := &store.Topic{
		ID:             existing.ID,
		ChapterID:      existing.ChapterID,
		Name:           req.Name,
		Description:    req.Description,
		Subject:        req.Subject,
		Steps:          req.Steps,
		KeyPoints:      req.KeyPoints,
		CommonMistakes: req.CommonMistakes,
	}
	if err := h.topics.Update(r.Context(), topic); err != nil {
		handleError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, toTopicResponse(topic))
}

// DeleteTopic removes a topic.
func (h *CatalogHandler) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	if err := h.topics.Delete(r.Context(), chi.URLParam(r, "tid")); err != nil {
		handleError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
