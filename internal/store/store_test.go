package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberlane/chatvault/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chatvault.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleConversation(externalID string) model.Conversation {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return model.Conversation{
		Provider:   model.ProviderClaude,
		ExternalID: externalID,
		Title:      "Test conversation",
		Model:      "claude-3",
		CreatedAt:  now,
		UpdatedAt:  now,
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "hello rust", Timestamp: now},
			{Role: model.RoleAssistant, Content: "hi there", Timestamp: now.Add(time.Minute)},
		},
	}
}

func TestUpsertConversation_InsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.UpsertConversation(ctx, sampleConversation("ext-1"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !res.Inserted {
		t.Error("expected first upsert to be an insert")
	}
	if res.MessagesWritten != 2 {
		t.Errorf("expected 2 messages written, got %d", res.MessagesWritten)
	}

	res2, err := s.UpsertConversation(ctx, sampleConversation("ext-1"))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if res2.Inserted {
		t.Error("expected second upsert to replace, not insert")
	}
	if res2.ConversationID != res.ConversationID {
		t.Error("expected same conversation id to be reused across re-import")
	}

	conv, err := s.GetConversation(ctx, res.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages after re-import, got %d", len(conv.Messages))
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetConversation(context.Background(), "does-not-exist")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearch_MatchesAndRanks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertConversation(ctx, sampleConversation("ext-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := s.Search(ctx, SearchQuery{Text: "rust", Limit: 20})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
	if results[0].Provider != model.ProviderClaude {
		t.Errorf("unexpected provider: %q", results[0].Provider)
	}
}

func TestSearch_FilterOnlyFallsBackToRecents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertConversation(ctx, sampleConversation("ext-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := s.Search(ctx, SearchQuery{Provider: model.ProviderClaude, Limit: 20})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected filter-only search to return the seeded conversation's messages")
	}
}

func TestSweepAbandoned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.BeginImportEvent(ctx, model.ProviderChatGPT, "some/path.json")
	if err != nil {
		t.Fatalf("begin event: %v", err)
	}

	n, err := s.SweepAbandoned(ctx, 0)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}

	ev, err := s.GetImportEvent(ctx, id)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if ev.Status != ImportStatusFailed {
		t.Errorf("expected failed status, got %q", ev.Status)
	}
}

func TestUpsertConversation_BatchesLargeConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	const messageCount = 1500
	messages := make([]model.Message, messageCount)
	for i := range messages {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		messages[i] = model.Message{
			Role:      role,
			Content:   "message body",
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
	}

	conv := model.Conversation{
		Provider:   model.ProviderClaude,
		ExternalID: "ext-large",
		Title:      "Large conversation",
		CreatedAt:  now,
		UpdatedAt:  now,
		Messages:   messages,
	}

	res, err := s.UpsertConversation(ctx, conv)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if res.MessagesWritten != messageCount {
		t.Fatalf("expected %d messages written, got %d", messageCount, res.MessagesWritten)
	}

	got, err := s.GetConversation(ctx, res.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if len(got.Messages) != messageCount {
		t.Fatalf("expected %d stored messages, got %d", messageCount, len(got.Messages))
	}
	for i, msg := range got.Messages {
		if msg.Content != "message body" {
			t.Fatalf("message %d has unexpected content %q", i, msg.Content)
		}
	}

	// Re-importing the same external conversation must still replace
	// every message across the batch boundary, not just the first 1000.
	res2, err := s.UpsertConversation(ctx, conv)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if res2.MessagesWritten != messageCount {
		t.Fatalf("expected %d messages written on re-import, got %d", messageCount, res2.MessagesWritten)
	}
	if res2.ConversationID != res.ConversationID {
		t.Error("expected same conversation id to be reused across re-import")
	}

	got2, err := s.GetConversation(ctx, res2.ConversationID)
	if err != nil {
		t.Fatalf("get conversation after re-import: %v", err)
	}
	if len(got2.Messages) != messageCount {
		t.Fatalf("expected %d stored messages after re-import, got %d", messageCount, len(got2.Messages))
	}
}

func TestStats_ByProviderAndRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertConversation(ctx, sampleConversation("ext-1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalConversations != 1 {
		t.Errorf("expected 1 conversation, got %d", stats.TotalConversations)
	}
	if stats.TotalMessages != 2 {
		t.Errorf("expected 2 messages, got %d", stats.TotalMessages)
	}
	if stats.ByProvider[model.ProviderClaude] != 1 {
		t.Errorf("expected 1 claude conversation, got %d", stats.ByProvider[model.ProviderClaude])
	}
	if stats.ByRole[model.RoleUser] != 1 {
		t.Errorf("expected 1 user message, got %d", stats.ByRole[model.RoleUser])
	}
	if stats.ByRole[model.RoleAssistant] != 1 {
		t.Errorf("expected 1 assistant message, got %d", stats.ByRole[model.RoleAssistant])
	}
}
