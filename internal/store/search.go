package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emberlane/chatvault/internal/model"
)

// ErrBadQuery is returned for a query the FTS engine itself rejects
// (unbalanced quotes, a bare reserved operator). It is always caught and
// surfaced as a user-visible result, never a storage-layer failure
// (spec.md §4.5 edge cases).
var ErrBadQuery = errors.New("store: query rejected by full-text engine")

// SearchQuery is the already-parsed form of a user's query string: free
// text plus the structured filters the DSL mini-language can express
// (spec.md §4.5).
type SearchQuery struct {
	Text     string
	Provider model.ProviderTag
	Role     model.Role
	Model    string
	After    time.Time
	Before   time.Time
	Limit    int
	Offset   int
}

// SearchResult is one ranked hit, with a clamped snippet of the
// matching region (spec.md §4.5).
type SearchResult struct {
	ConversationID string
	MessageID      string
	Provider       model.ProviderTag
	Title          string
	Model          string
	CreatedAt      time.Time
	Snippet        string
}

// Search runs q against the messages_fts index, falling back to a plain
// filter-ordered listing when Text is empty (spec.md §4.5 edge case:
// "empty query and no filters/filters only" still returns results).
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if strings.TrimSpace(q.Text) == "" {
		return s.searchByFilterOnly(ctx, q, limit)
	}

	var b strings.Builder
	b.WriteString(`
		SELECT c.id, m.id, p.tag, c.title, c.model, c.created_at,
		       snippet(messages_fts, 0, '[', ']', '...', 12) AS snip
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		JOIN conversations c ON c.id = m.conversation_id
		JOIN providers p ON p.id = c.provider_id
		WHERE messages_fts MATCH ?`)
	args := []any{q.Text}

	b.WriteString(filterClause(q, &args))
	b.WriteString(` ORDER BY bm25(messages_fts), c.created_at DESC LIMIT ? OFFSET ?`)
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		if isFTSSyntaxError(err) {
			return nil, ErrBadQuery
		}
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

func (s *Store) searchByFilterOnly(ctx context.Context, q SearchQuery, limit int) ([]SearchResult, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT c.id, m.id, p.tag, c.title, c.model, c.created_at, substr(m.content, 1, 201)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN providers p ON p.id = c.provider_id
		WHERE 1=1`)
	args := []any{}
	b.WriteString(filterClause(q, &args))
	b.WriteString(` ORDER BY c.updated_at DESC LIMIT ? OFFSET ?`)
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list by filter: %w", err)
	}
	defer rows.Close()

	return scanSearchResults(rows)
}

func filterClause(q SearchQuery, args *[]any) string {
	var b strings.Builder
	if q.Provider != "" {
		b.WriteString(" AND p.tag = ?")
		*args = append(*args, string(q.Provider))
	}
	if q.Role != "" {
		b.WriteString(" AND m.role = ?")
		*args = append(*args, string(q.Role))
	}
	if q.Model != "" {
		b.WriteString(" AND c.model = ?")
		*args = append(*args, q.Model)
	}
	if !q.After.IsZero() {
		b.WriteString(" AND c.created_at >= ?")
		*args = append(*args, q.After)
	}
	if !q.Before.IsZero() {
		b.WriteString(" AND c.created_at <= ?")
		*args = append(*args, q.Before)
	}
	return b.String()
}

func scanSearchResults(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var providerTag string
		if err := rows.Scan(&r.ConversationID, &r.MessageID, &providerTag, &r.Title, &r.Model, &r.CreatedAt, &r.Snippet); err != nil {
			return nil, fmt.Errorf("store: scan search result: %w", err)
		}
		r.Provider = model.ProviderTag(providerTag)
		r.Snippet = clampSnippet(r.Snippet)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate search results: %w", err)
	}
	return out, nil
}

// clampSnippet enforces the ~200 character budget with a trailing
// ellipsis. The filter-only path fetches one character past the budget
// via substr so a truncated message is still marked as such; the FTS
// snippet() path (which already clamps token count) passes through
// unchanged in the common case.
func clampSnippet(s string) string {
	const max = 200
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") || strings.Contains(msg, "malformed MATCH")
}
