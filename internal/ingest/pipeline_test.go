package ingest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipeline_Run_ChatGPTFixture(t *testing.T) {
	s := newTestStore(t)
	p := New(s, testLogger(), 2)

	result, err := p.Run(context.Background(), model.ProviderChatGPT, "../parser/testdata/chatgpt/sample.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed {
		t.Fatalf("expected run to succeed, got error text: %q", result.ErrorText)
	}
	if result.ConversationsInserted != 2 {
		t.Errorf("expected 2 conversations inserted, got %d", result.ConversationsInserted)
	}
	if result.MessagesInserted != 6 {
		t.Errorf("expected 6 messages inserted, got %d", result.MessagesInserted)
	}

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalConversations != 2 || stats.TotalMessages != 6 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPipeline_Run_IdempotentReimport(t *testing.T) {
	s := newTestStore(t)
	p := New(s, testLogger(), 2)
	ctx := context.Background()

	first, err := p.Run(ctx, model.ProviderChatGPT, "../parser/testdata/chatgpt/sample.json")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.ConversationsInserted != 2 {
		t.Fatalf("expected 2 inserted on first run, got %d", first.ConversationsInserted)
	}

	second, err := p.Run(ctx, model.ProviderChatGPT, "../parser/testdata/chatgpt/sample.json")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ConversationsInserted != 0 {
		t.Errorf("expected 0 newly inserted on re-import, got %d", second.ConversationsInserted)
	}
	if second.ConversationsUpdated != 2 {
		t.Errorf("expected 2 updated on re-import, got %d", second.ConversationsUpdated)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalConversations != 2 {
		t.Errorf("expected conversation count unchanged by re-import, got %d", stats.TotalConversations)
	}
	if stats.TotalMessages != 6 {
		t.Errorf("expected message count unchanged by re-import, got %d", stats.TotalMessages)
	}
}

func TestPipeline_SweepAbandoned(t *testing.T) {
	s := newTestStore(t)
	p := New(s, testLogger(), 2)
	ctx := context.Background()

	eventID, err := s.BeginImportEvent(ctx, model.ProviderChatGPT, "some/path.json")
	if err != nil {
		t.Fatalf("begin event: %v", err)
	}

	n, err := p.SweepAbandoned(ctx, 0)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept event, got %d", n)
	}

	ev, err := s.GetImportEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if ev.Status != store.ImportStatusFailed {
		t.Errorf("expected event marked failed, got %q", ev.Status)
	}
}
