// Package search turns a user's free-text query string into a
// structured store.SearchQuery and runs it, applying the edge-case
// rules spec.md §4.5 requires: punctuation-only text returns an empty
// result without querying the store, empty text goes to the store's
// filter-only listing, and an expression the FTS engine rejects comes
// back as a bad-query flag rather than an error.
package search

import (
	"strings"
	"time"
	"unicode"

	"github.com/emberlane/chatvault/internal/model"
	"github.com/emberlane/chatvault/internal/store"
)

// dslLayouts are the date formats accepted by the after:/before: tags.
var dslLayouts = []string{"2006-01-02", time.RFC3339}

// ParseQuery splits raw into whitespace-separated key:value tags and
// the remaining free text (spec.md §4.5). Unrecognized tag keys are
// left in the free text untouched, on the theory that a user searching
// for a literal "foo:bar" string should not have it silently eaten.
func ParseQuery(raw string) (store.SearchQuery, bool) {
	var q store.SearchQuery
	var textParts []string

	for _, field := range strings.Fields(raw) {
		key, value, ok := splitTag(field)
		if !ok {
			textParts = append(textParts, field)
			continue
		}

		switch key {
		case "provider":
			q.Provider = model.ProviderTag(value)
		case "role":
			q.Role = model.Role(value)
		case "model":
			q.Model = value
		case "after":
			if t, ok := ParseDate(value); ok {
				q.After = t
			} else {
				textParts = append(textParts, field)
			}
		case "before":
			if t, ok := ParseDate(value); ok {
				q.Before = t
			} else {
				textParts = append(textParts, field)
			}
		default:
			textParts = append(textParts, field)
		}
	}

	q.Text = strings.Join(textParts, " ")
	return q, len(textParts) > 0
}

func splitTag(field string) (key, value string, ok bool) {
	idx := strings.IndexByte(field, ':')
	if idx <= 0 || idx == len(field)-1 {
		return "", "", false
	}
	key = field[:idx]
	switch key {
	case "provider", "role", "model", "after", "before":
		return key, field[idx+1:], true
	default:
		return "", "", false
	}
}

// ParseDate parses a date/time string using the same layouts the
// after:/before: DSL tags accept, exported so the HTTP layer's
// after=/before= query parameters (spec.md §6) can share one definition
// of "valid date" with the in-text tags.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dslLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// isReservedPunctuationOnly reports whether s contains no letters or
// digits at all, meaning it is either empty or pure FTS-reserved
// punctuation such as `"` or `*` (spec.md §4.5 edge case).
func isReservedPunctuationOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
