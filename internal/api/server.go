package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/sissi0509/AI-study-buddy/internal/auth"
	"github.com/sissi0509/AI-study-buddy/internal/store"
	"github.com/sissi0509/AI-study-buddy/internal/tutor"
)

// NewRouter assembles the full HTTP surface.
func NewRouter(st *store.Store, issuer *auth.TokenIssuer, controller *tutor.Controller) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	authHandler := NewAuthHandler(st.Users(), issuer)
	catalogHandler := NewCatalogHandler(st.Chapters(), st.Topics())
	chatHandler := NewChatHandler(controller)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", authHandler.RegisterRoutes)

		r.Group(func(r chi.Router) {
			r.Use(issuer.RequireAuth)
			catalogHandler.RegisterRoutes(r)
			chatHandler.RegisterRoutes(r)
		})
	})

	return r
}

// NewServer wraps the router in an http.Server with sane timeouts.
// Chat turns can take several generation calls, so the write timeout
// stays generous.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// requestLogger logs one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chiMiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}
