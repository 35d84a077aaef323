// Package query is the small read API the HTTP layer calls: search,
// list_conversations, get_conversation, get_messages, stats
// (spec.md §4.6). It does no business logic of its own beyond wiring
// pagination defaults; the real work lives in internal/search and
// internal/store.
package query

import (
	"context"
	"time"

	"github.com/emberlane/chatvault/internal/model"
	"github.com/emberlane/chatvault/internal/search"
	"github.com/emberlane/chatvault/internal/store"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Facade is the query surface handed to the HTTP server.
type Facade struct {
	store *store.Store
}

func New(s *store.Store) *Facade {
	return &Facade{store: s}
}

// SearchResult is the façade's shape for one hit, ready for JSON
// encoding without leaking storage internals.
type SearchResult struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Provider       string    `json:"provider"`
	Title          string    `json:"title"`
	Model          string    `json:"model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Snippet        string    `json:"snippet"`
}

// SearchResponse is search's full return shape (spec.md §4.6:
// "(results, total_estimate, page_info)").
type SearchResponse struct {
	Results       []SearchResult  `json:"results"`
	TotalEstimate int             `json:"total_estimate"`
	Page          search.PageInfo `json:"page"`
	BadQuery      bool            `json:"bad_query,omitempty"`
}

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPerPage
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}
	return offset, limit
}

// SearchFilters carries the query-parameter filters the HTTP layer
// exposes alongside the free-text DSL (spec.md §6:
// `/api/search?q=…&provider=…&after=…&before=…`).
type SearchFilters struct {
	Provider model.ProviderTag
	After    time.Time
	Before   time.Time
}

// Search runs a free-text query with the key:value filter mini-language
// and returns ranked, snippeted results. filters fill in any of
// provider/after/before that the query text itself doesn't set via a
// DSL tag.
func (f *Facade) Search(ctx context.Context, q string, filters SearchFilters, offset, limit int) (SearchResponse, error) {
	offset, limit = normalizePage(offset, limit)

	overrides := search.Overrides{Provider: filters.Provider, After: filters.After, Before: filters.Before}
	fetched, page, bad, err := search.Run(ctx, f.store, q, overrides, offset, limit)
	if err != nil {
		return SearchResponse{}, err
	}

	results := make([]SearchResult, 0, len(fetched))
	for _, r := range fetched {
		results = append(results, SearchResult{
			ConversationID: r.ConversationID,
			MessageID:      r.MessageID,
			Provider:       string(r.Provider),
			Title:          r.Title,
			Model:          r.Model,
			CreatedAt:      r.CreatedAt,
			Snippet:        r.Snippet,
		})
	}

	// total_estimate is deliberately an estimate, not an exact count: an
	// exact COUNT(*) over the FTS match would cost as much as the query
	// itself and blow the 100ms budget at 1M messages.
	totalEstimate := len(results) + offset
	if page.HasMore {
		totalEstimate++
	}

	return SearchResponse{Results: results, TotalEstimate: totalEstimate, Page: page, BadQuery: bad}, nil
}

// ConversationListFilter mirrors store.ListConversationsFilter at the
// façade boundary.
type ConversationListFilter struct {
	Provider model.ProviderTag
	After    time.Time
	Before   time.Time
	Offset   int
	Limit    int
}

func (f *Facade) ListConversations(ctx context.Context, filter ConversationListFilter) ([]store.ConversationSummary, search.PageInfo, error) {
	offset, limit := normalizePage(filter.Offset, filter.Limit)

	out, err := f.store.ListConversations(ctx, store.ListConversationsFilter{
		Provider: filter.Provider,
		After:    filter.After,
		Before:   filter.Before,
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		return nil, search.PageInfo{}, err
	}

	page := search.PageInfo{Offset: offset, Limit: limit, HasMore: len(out) == limit}
	return out, page, nil
}

func (f *Facade) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	return f.store.GetConversation(ctx, id)
}

func (f *Facade) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	return f.store.GetMessages(ctx, conversationID)
}

func (f *Facade) Stats(ctx context.Context) (store.Stats, error) {
	return f.store.Stats(ctx)
}
