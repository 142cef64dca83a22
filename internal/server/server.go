package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/imnotsalty/mlschatproto/internal/auth"
)

// New constructs the HTTP server with routes and middleware.
func New(port string, handler Handler, apiKeyHash string, staticFS http.Handler) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireKey(apiKeyHash))
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", handler.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetSession)
				r.Post("/messages", handler.PostMessage)
				r.Post("/uploads", handler.Upload)
			})
		})
		r.Get("/renders/{id}", handler.GetRender)
		r.Get("/events", handler.StreamEvents)
	})

	// Serve the static frontend
	if staticFS != nil {
		router.Handle("/*", staticFS)
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Println("server ready on", srv.Addr)
	return srv
}
