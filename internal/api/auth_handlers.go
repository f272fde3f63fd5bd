package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/sissi0509/AI-study-buddy/internal/auth"
	"github.com/sissi0509/AI-study-buddy/internal/store"
)

// AuthHandler handles signup, login, and session endpoints.
type AuthHandler struct {
	users  *store.UserRepo
	issuer *auth.TokenIssuer
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(users *store.UserRepo, issuer *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer}
}

// RegisterRoutes registers the auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.With(h.issuer.RequireAuth).Get("/me", h.Me)
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Signup registers a new account and opens a session.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		Error(w, http.StatusBadRequest, "name, email, and a password of at least 8 characters are required")
		return
	}
	if req.Role == "" {
		req.Role = "student"
	}
	if req.Role != "student" && req.Role != "teacher" {
		Error(w, http.StatusBadRequest, "role must be student or teacher")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}

	user := &store.User{Name: req.Name, Email: req.Email, PasswordHash: hash, Role: req.Role}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			Error(w, http.StatusConflict, "email already registered")
			return
		}
		handleError(w, r, err)
		return
	}

	if err := h.openSession(w, user); err != nil {
		handleError(w, r, err)
		return
	}

	log.Info().Str("user", user.ID).Str("role", user.Role).Msg("user signed up")
	JSON(w, http.StatusCreated, userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.users.GetByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, req.Password)) {
		// Same answer for unknown email and wrong password.
		Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.openSession(w, user); err != nil {
		handleError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())

	user, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	JSON(w, http.StatusOK, userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role})
}

func (h *AuthHandler) openSession(w http.ResponseWriter, user *store.User) error {
	token, err := h.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return err
	}
	auth.SetSessionCookie(w, token, int(h.issuer.TTL().Seconds()))
	return nil
}
