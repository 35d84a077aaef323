// Package api is the HTTP surface consumed by the browser UI collaborator
// (spec.md §6): a thin router in front of internal/query's façade.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/emberlane/chatvault/internal/ingest"
	"github.com/emberlane/chatvault/internal/query"
)

// searchTimeout is a backstop against a hung or runaway search: a
// request that runs past it is aborted with 503 rather than left to
// hang. It is far above the 100ms search latency target and does not
// enforce that target.
const searchTimeout = 5 * time.Second

type Server struct {
	router   *chi.Mux
	addr     string
	facade   *query.Facade
	pipeline *ingest.Pipeline
}

func NewServer(addr string, facade *query.Facade, pipeline *ingest.Pipeline) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		addr:     addr,
		facade:   facade,
		pipeline: pipeline,
	}

	router.Get("/health", s.health)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(searchTimeout))
		r.Get("/api/search", s.search)
	})

	router.Get("/api/conversations", s.listConversations)
	router.Get("/api/conversations/{id}", s.getConversation)
	router.Get("/api/conversations/{id}/messages", s.getMessages)
	router.Get("/api/stats", s.stats)
	router.Post("/api/import", s.importFile)

	return s
}

func (s *Server) Start() error {
	slog.Info("api server starting", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
