package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emberlane/chatvault/internal/model"
	"github.com/emberlane/chatvault/internal/query"
	"github.com/emberlane/chatvault/internal/search"
	"github.com/emberlane/chatvault/internal/store"
)

// dateQueryParam parses the after/before query params shared by /api/search
// and /api/conversations (spec.md §6), reporting a 400 on an unparseable
// value rather than silently ignoring it.
func dateQueryParam(w http.ResponseWriter, r *http.Request, key string) (t time.Time, ok bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, parsed := search.ParseDate(raw)
	if !parsed {
		writeError(w, http.StatusBadRequest, "invalid "+key+" date")
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "per_page", 20)

	after, ok := dateQueryParam(w, r, "after")
	if !ok {
		return
	}
	before, ok := dateQueryParam(w, r, "before")
	if !ok {
		return
	}
	filters := query.SearchFilters{
		Provider: model.ProviderTag(r.URL.Query().Get("provider")),
		After:    after,
		Before:   before,
	}

	resp, err := s.facade.Search(r.Context(), q, filters, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	after, ok := dateQueryParam(w, r, "after")
	if !ok {
		return
	}
	before, ok := dateQueryParam(w, r, "before")
	if !ok {
		return
	}
	filter := query.ConversationListFilter{
		Provider: model.ProviderTag(r.URL.Query().Get("provider")),
		After:    after,
		Before:   before,
		Offset:   queryInt(r, "offset", 0),
		Limit:    queryInt(r, "per_page", 20),
	}

	convs, page, err := s.facade.ListConversations(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs, "page": page})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.facade.GetConversation(r.Context(), id)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	messages, err := s.facade.GetMessages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.facade.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// importFile handles POST /api/import: a multipart file upload plus a
// provider form field, run synchronously through the ingestion pipeline
// (spec.md §6). The upload is spooled to a temp file since every parser
// expects a source path, not a stream.
func (s *Server) importFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	provider := model.ProviderTag(r.FormValue("provider"))
	if provider == "" {
		writeError(w, http.StatusBadRequest, "missing provider field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "chatvault-import-*-"+filepath.Base(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to spool upload")
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to spool upload")
		return
	}

	result, err := s.pipeline.Run(r.Context(), provider, tmp.Name())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	if result.Failed {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
