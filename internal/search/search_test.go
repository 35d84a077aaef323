package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberlane/chatvault/internal/model"
	"github.com/emberlane/chatvault/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chatvault.db")
	s, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedConversation(t *testing.T, s *store.Store) {
	t.Helper()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.UpsertConversation(context.Background(), model.Conversation{
		Provider:   model.ProviderClaude,
		ExternalID: "ext-1",
		Title:      "Rust help",
		CreatedAt:  now,
		UpdatedAt:  now,
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "how do I read a file in rust", Timestamp: now},
			{Role: model.RoleAssistant, Content: "use std::fs::read_to_string", Timestamp: now.Add(time.Minute)},
		},
	})
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
}

func TestRun_FreeTextMatch(t *testing.T) {
	s := newTestStore(t)
	seedConversation(t, s)

	results, page, bad, err := Run(context.Background(), s, "rust", Overrides{}, 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bad {
		t.Fatal("did not expect bad query")
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if page.Offset != 0 || page.Limit != 20 {
		t.Errorf("unexpected page info: %+v", page)
	}
}

func TestRun_PunctuationOnlyReturnsEmptyNoError(t *testing.T) {
	s := newTestStore(t)
	seedConversation(t, s)

	results, _, bad, err := Run(context.Background(), s, "***", Overrides{}, 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bad {
		t.Fatal("punctuation-only query is not the same as a bad query")
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestRun_EmptyQueryNoFiltersReturnsRecents(t *testing.T) {
	s := newTestStore(t)
	seedConversation(t, s)

	results, _, bad, err := Run(context.Background(), s, "", Overrides{}, 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bad {
		t.Fatal("did not expect bad query")
	}
	if len(results) == 0 {
		t.Fatal("expected the most recently updated conversation's messages")
	}
}

func TestRun_FilterOnlyRestrictsByProvider(t *testing.T) {
	s := newTestStore(t)
	seedConversation(t, s)

	results, _, _, err := Run(context.Background(), s, "provider:gemini", Overrides{}, 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results for a provider with no conversations, got %d", len(results))
	}

	results, _, _, err = Run(context.Background(), s, "provider:claude", Overrides{}, 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results restricted to provider:claude")
	}
}

func TestRun_ProviderOverrideAppliesWithoutDSLTag(t *testing.T) {
	s := newTestStore(t)
	seedConversation(t, s)

	results, _, _, err := Run(context.Background(), s, "rust", Overrides{Provider: model.ProviderGemini}, 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results for a provider override with no matching conversations, got %d", len(results))
	}

	results, _, _, err = Run(context.Background(), s, "rust", Overrides{Provider: model.ProviderClaude}, 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results restricted by the provider override")
	}
}

func TestRun_DSLTagTakesPrecedenceOverOverride(t *testing.T) {
	s := newTestStore(t)
	seedConversation(t, s)

	// The in-text tag names claude (a match); the override names gemini
	// (no match). The tag must win.
	results, _, _, err := Run(context.Background(), s, "provider:claude rust", Overrides{Provider: model.ProviderGemini}, 0, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected the DSL tag to take precedence over the override")
	}
}
