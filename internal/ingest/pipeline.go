// Package ingest drives a provider parser and writes its output into
// storage: one ImportEvent audit row, then a bounded-concurrency sweep
// over the parser's conversations, each upserted in its own transaction
// so a single bad conversation never aborts the whole run
// (spec.md §4.3).
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emberlane/chatvault/internal/model"
	"github.com/emberlane/chatvault/internal/parser"
	"github.com/emberlane/chatvault/internal/store"
)

// Pipeline runs ingestion runs against a single store.
type Pipeline struct {
	store      *store.Store
	logger     *slog.Logger
	maxWorkers int
}

func New(s *store.Store, logger *slog.Logger, maxWorkers int) *Pipeline {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Pipeline{store: s, logger: logger, maxWorkers: maxWorkers}
}

// Result is what a completed run reports back to the caller (the CLI
// or the HTTP /api/import handler).
type Result struct {
	EventID               string
	ConversationsInserted int
	ConversationsUpdated  int
	MessagesInserted      int
	WarningsCount         int
	Failed                bool
	ErrorText             string
}

// Run executes the full algorithm of spec.md §4.3.
func (p *Pipeline) Run(ctx context.Context, provider model.ProviderTag, sourcePath string) (Result, error) {
	eventID, err := p.store.BeginImportEvent(ctx, provider, sourcePath)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: begin event: %w", err)
	}

	prsr, err := parser.ForProvider(provider)
	if err != nil {
		diag := []string{err.Error()}
		_ = p.store.FinishImportEvent(ctx, eventID, store.ImportStatusFailed, 0, 0, 0, 0, err.Error(), diag)
		return Result{EventID: eventID, Failed: true, ErrorText: err.Error()}, nil
	}

	conversations, warnings, err := prsr.Parse(ctx, sourcePath)
	if err != nil {
		p.logger.Error("ingest: parser returned a fatal error", "provider", provider, "source", sourcePath, "error", err)
		_ = p.store.FinishImportEvent(ctx, eventID, store.ImportStatusFailed, 0, 0, 0, len(warnings), err.Error(), warningStrings(warnings))
		return Result{EventID: eventID, Failed: true, ErrorText: err.Error()}, nil
	}

	p.logger.Info("ingest: parsed source", "provider", provider, "source", sourcePath, "conversations", len(conversations), "warnings", len(warnings))

	var (
		mu                sync.Mutex
		inserted          int
		updated           int
		messagesInserted  int
		conversationDiags []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)

	for _, conv := range conversations {
		conv := conv
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			res, err := p.store.UpsertConversation(gctx, conv)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("ingest: conversation failed, skipped", "external_id", conv.ExternalID, "error", err)
				conversationDiags = append(conversationDiags, fmt.Sprintf("%s: %v", conv.ExternalID, err))
				return nil
			}
			if res.Inserted {
				inserted++
			} else {
				updated++
			}
			messagesInserted += res.MessagesWritten
			return nil
		})
	}

	// A worker returning a non-nil error means the run's context was
	// canceled; individual conversation failures are recorded as
	// diagnostics above and never propagate here.
	runErr := g.Wait()

	diagnostics := append(warningStrings(warnings), conversationDiags...)
	warningsCount := len(warnings) + len(conversationDiags)

	status := store.ImportStatusCompleted
	errText := ""
	if runErr != nil {
		status = store.ImportStatusFailed
		errText = runErr.Error()
	}

	if err := p.store.FinishImportEvent(ctx, eventID, status, inserted, updated, messagesInserted, warningsCount, errText, diagnostics); err != nil {
		return Result{}, fmt.Errorf("ingest: finish event: %w", err)
	}

	p.logger.Info("ingest: run complete", "provider", provider, "inserted", inserted, "updated", updated, "messages", messagesInserted, "warnings", warningsCount)

	return Result{
		EventID:               eventID,
		ConversationsInserted: inserted,
		ConversationsUpdated:  updated,
		MessagesInserted:      messagesInserted,
		WarningsCount:         warningsCount,
		Failed:                runErr != nil,
		ErrorText:             errText,
	}, nil
}

func warningStrings(warnings []parser.Warning) []string {
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}

// SweepAbandoned marks any import event left in_progress by a crashed
// process as failed, once grace has elapsed since it started
// (SPEC_FULL.md §C).
func (p *Pipeline) SweepAbandoned(ctx context.Context, grace time.Duration) (int64, error) {
	return p.store.SweepAbandoned(ctx, grace)
}
