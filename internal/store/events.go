package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberlane/chatvault/internal/model"
)

// ImportEventStatus is the lifecycle state of one ingestion run
// (spec.md §4.3, glossary "ImportEvent").
type ImportEventStatus string

const (
	ImportStatusInProgress ImportEventStatus = "in_progress"
	ImportStatusCompleted  ImportEventStatus = "completed"
	ImportStatusFailed     ImportEventStatus = "failed"
)

// ImportEvent is the persisted audit record for one ingestion run.
type ImportEvent struct {
	ID                    string
	Provider              model.ProviderTag
	SourcePath            string
	Status                ImportEventStatus
	StartedAt             time.Time
	FinishedAt            *time.Time
	ConversationsInserted int
	ConversationsUpdated  int
	MessagesInserted      int
	WarningsCount         int
	ErrorText             string
	Diagnostics           []string
}

// BeginImportEvent inserts an in_progress event and returns its id.
func (s *Store) BeginImportEvent(ctx context.Context, provider model.ProviderTag, sourcePath string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin import event tx: %w", err)
	}
	defer tx.Rollback()

	provID, err := s.providerID(ctx, tx, provider)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO import_events (id, provider_id, source_path, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, provID, sourcePath, string(ImportStatusInProgress), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("store: insert import event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit import event tx: %w", err)
	}
	return id, nil
}

// FinishImportEvent marks an event completed or failed and records its
// final counters (spec.md §4.3 steps 5-6).
func (s *Store) FinishImportEvent(ctx context.Context, id string, status ImportEventStatus, inserted, updated, messagesInserted, warnings int, errText string, diagnostics []string) error {
	diagJSON, err := json.Marshal(diagnostics)
	if err != nil {
		return fmt.Errorf("store: encode diagnostics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE import_events
		SET status = ?, finished_at = ?, conversations_inserted = ?, conversations_updated = ?, messages_inserted = ?, warnings_count = ?, error_text = ?, diagnostics = ?
		WHERE id = ?`,
		string(status), time.Now().UTC(), inserted, updated, messagesInserted, warnings, errText, string(diagJSON), id,
	)
	if err != nil {
		return fmt.Errorf("store: finish import event %s: %w", id, err)
	}
	return nil
}

// GetImportEvent returns a single event by id.
func (s *Store) GetImportEvent(ctx context.Context, id string) (ImportEvent, error) {
	var ev ImportEvent
	var providerTag string
	var finishedAt sql.NullTime
	var diagJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT e.id, p.tag, e.source_path, e.status, e.started_at, e.finished_at, e.conversations_inserted, e.conversations_updated, e.messages_inserted, e.warnings_count, e.error_text, e.diagnostics
		FROM import_events e JOIN providers p ON p.id = e.provider_id
		WHERE e.id = ?`, id,
	).Scan(&ev.ID, &providerTag, &ev.SourcePath, &ev.Status, &ev.StartedAt, &finishedAt, &ev.ConversationsInserted, &ev.ConversationsUpdated, &ev.MessagesInserted, &ev.WarningsCount, &ev.ErrorText, &diagJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportEvent{}, ErrNotFound
	}
	if err != nil {
		return ImportEvent{}, fmt.Errorf("store: get import event %s: %w", id, err)
	}

	ev.Provider = model.ProviderTag(providerTag)
	if finishedAt.Valid {
		ev.FinishedAt = &finishedAt.Time
	}
	if diagJSON != "" {
		if err := json.Unmarshal([]byte(diagJSON), &ev.Diagnostics); err != nil {
			return ImportEvent{}, fmt.Errorf("store: decode diagnostics: %w", err)
		}
	}

	return ev, nil
}

// SweepAbandoned marks every import_event still in_progress and older
// than grace as failed. A process crash mid-import leaves its event
// stuck at in_progress forever otherwise; the import and serve commands
// run it once before they start work (SPEC_FULL.md ambient ingestion
// behavior).
func (s *Store) SweepAbandoned(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-grace)
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_events
		SET status = ?, finished_at = ?, error_text = 'abandoned: process exited before completion'
		WHERE status = ? AND started_at < ?`,
		string(ImportStatusFailed), time.Now().UTC(), string(ImportStatusInProgress), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("store: sweep abandoned import events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected after sweep: %w", err)
	}
	return n, nil
}
