package search

import (
	"context"
	"errors"
	"time"

	"github.com/emberlane/chatvault/internal/model"
	"github.com/emberlane/chatvault/internal/store"
)

// PageInfo describes the caller's position in a result set
// (spec.md §4.6).
type PageInfo struct {
	Offset  int
	Limit   int
	HasMore bool
}

// Overrides carries the query-parameter filters the HTTP layer exposes
// alongside the free-text DSL (spec.md §6: `?provider=…&after=…&before=…`).
// A DSL tag already present in the query text (e.g. "provider:claude")
// takes precedence; an override only fills in a field the DSL left unset.
type Overrides struct {
	Provider model.ProviderTag
	After    time.Time
	Before   time.Time
}

// Run executes raw against the store, honoring every edge case
// spec.md §4.5 names. BadQuery is true when the FTS engine itself
// rejected the expression; callers must surface that as a user-visible
// "bad query" result rather than an HTTP 5xx.
func Run(ctx context.Context, s *store.Store, raw string, overrides Overrides, offset, limit int) (results []store.SearchResult, page PageInfo, badQuery bool, err error) {
	q, hadFreeText := ParseQuery(raw)
	if q.Provider == "" {
		q.Provider = overrides.Provider
	}
	if q.After.IsZero() {
		q.After = overrides.After
	}
	if q.Before.IsZero() {
		q.Before = overrides.Before
	}
	q.Offset = offset
	q.Limit = limit

	if hadFreeText && isReservedPunctuationOnly(q.Text) {
		// Free text was present but carried no letters or digits at
		// all (e.g. `***`): the spec calls for an empty result, not
		// the "no text, fall back to filters/recents" path.
		return nil, PageInfo{Offset: offset, Limit: limit}, false, nil
	}

	fetched, err := s.Search(ctx, q)
	if err != nil {
		if errors.Is(err, store.ErrBadQuery) {
			return nil, PageInfo{Offset: offset, Limit: limit}, true, nil
		}
		return nil, PageInfo{}, false, err
	}

	page = PageInfo{Offset: offset, Limit: limit, HasMore: len(fetched) == limit}
	return fetched, page, false, nil
}
