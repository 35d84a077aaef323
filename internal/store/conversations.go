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

// UpsertResult reports what UpsertConversation did, for the ingestion
// pipeline's per-run counters (spec.md §4.3).
type UpsertResult struct {
	ConversationID  string
	Inserted        bool // false means an existing (provider, external_id) row was replaced
	MessagesWritten int
}

// UpsertConversation replaces the conversation identified by
// (provider, external_id): existing messages are deleted and the
// parser's messages are reinserted with positions reassigned 0..N-1.
// A conversation of up to 1000 messages is written in one transaction,
// so a crash mid-write never leaves it half updated. A larger one
// commits the conversation row and the message delete first, then
// inserts messages in 1000-row batches, each in its own transaction; a
// failure partway through leaves the batches already committed in place
// (spec.md §4.3).
func (s *Store) UpsertConversation(ctx context.Context, conv model.Conversation) (UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("store: begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	provID, err := s.providerID(ctx, tx, conv.Provider)
	if err != nil {
		return UpsertResult{}, err
	}

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE provider_id = ? AND external_id = ?`,
		provID, conv.ExternalID,
	).Scan(&existingID)

	inserted := errors.Is(err, sql.ErrNoRows)
	if err != nil && !inserted {
		return UpsertResult{}, fmt.Errorf("store: look up existing conversation: %w", err)
	}

	id := existingID
	if inserted {
		id = uuid.NewString()
	}

	temperature := conv.Temperature
	maxTokens := conv.MaxTokens

	if inserted {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversations (id, provider_id, external_id, title, model, created_at, updated_at, system_prompt, temperature, max_tokens, raw_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, provID, conv.ExternalID, conv.Title, conv.Model, conv.CreatedAt, conv.UpdatedAt, conv.SystemPrompt, temperature, maxTokens, conv.RawJSON,
		)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE conversations SET title = ?, model = ?, created_at = ?, updated_at = ?, system_prompt = ?, temperature = ?, max_tokens = ?, raw_json = ?
			WHERE id = ?`,
			conv.Title, conv.Model, conv.CreatedAt, conv.UpdatedAt, conv.SystemPrompt, temperature, maxTokens, conv.RawJSON, id,
		)
	}
	if err != nil {
		return UpsertResult{}, classifyWriteError("upsert conversation", err)
	}

	if !inserted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
			return UpsertResult{}, fmt.Errorf("store: delete existing messages: %w", err)
		}
	}

	const messageBatchSize = 1000
	total := len(conv.Messages)

	if total <= messageBatchSize {
		if err := insertMessages(ctx, tx, id, conv.Messages, 0); err != nil {
			return UpsertResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return UpsertResult{}, fmt.Errorf("store: commit upsert tx: %w", err)
		}
		return UpsertResult{ConversationID: id, Inserted: inserted, MessagesWritten: total}, nil
	}

	// Large conversations cross a transaction boundary every 1000
	// messages rather than holding one transaction open for the whole
	// import (spec.md §4.3 step 3).
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("store: commit upsert tx: %w", err)
	}

	for start := 0; start < total; start += messageBatchSize {
		end := start + messageBatchSize
		if end > total {
			end = total
		}
		if err := s.insertMessageBatch(ctx, id, conv.Messages[start:end], start); err != nil {
			return UpsertResult{}, err
		}
	}

	return UpsertResult{ConversationID: id, Inserted: inserted, MessagesWritten: total}, nil
}

// insertMessageBatch inserts a slice of a conversation's messages in its
// own transaction, with position assigned starting at positionOffset so
// batches stay contiguous with the ones before and after them.
func (s *Store) insertMessageBatch(ctx context.Context, conversationID string, messages []model.Message, positionOffset int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin message batch tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertMessages(ctx, tx, conversationID, messages, positionOffset); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit message batch tx: %w", err)
	}
	return nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, conversationID string, messages []model.Message, positionOffset int) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, model_override, timestamp, position, synthesized, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		attachmentsJSON, err := json.Marshal(msg.Attachments)
		if err != nil {
			return fmt.Errorf("store: encode attachments: %w", err)
		}
		synthesized := 0
		if msg.Synthesized {
			synthesized = 1
		}
		msgID := msg.ID
		if msgID == "" {
			msgID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, msgID, conversationID, string(msg.Role), msg.Content, msg.ModelOverride, msg.Timestamp, positionOffset+i, synthesized, string(attachmentsJSON)); err != nil {
			return classifyWriteError("insert message", err)
		}
	}
	return nil
}

// ConversationSummary is the row shape returned by ListConversations: a
// conversation without its message body, plus a computed count
// (spec.md §4.6 list_conversations).
type ConversationSummary struct {
	ID           string
	Provider     model.ProviderTag
	ExternalID   string
	Title        string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// ListConversationsFilter narrows ListConversations by provider and/or
// a creation-date window; zero values mean "no restriction".
type ListConversationsFilter struct {
	Provider model.ProviderTag
	After    time.Time
	Before   time.Time
	Limit    int
	Offset   int
}

func (s *Store) ListConversations(ctx context.Context, filter ListConversationsFilter) ([]ConversationSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT c.id, p.tag, c.external_id, c.title, c.model, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
		FROM conversations c
		JOIN providers p ON p.id = c.provider_id
		WHERE 1=1`
	args := []any{}
	if filter.Provider != "" {
		query += ` AND p.tag = ?`
		args = append(args, string(filter.Provider))
	}
	if !filter.After.IsZero() {
		query += ` AND c.created_at >= ?`
		args = append(args, filter.After)
	}
	if !filter.Before.IsZero() {
		query += ` AND c.created_at <= ?`
		args = append(args, filter.Before)
	}
	query += ` ORDER BY c.updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var c ConversationSummary
		var providerTag string
		if err := rows.Scan(&c.ID, &providerTag, &c.ExternalID, &c.Title, &c.Model, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("store: scan conversation summary: %w", err)
		}
		c.Provider = model.ProviderTag(providerTag)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate conversation summaries: %w", err)
	}
	return out, nil
}

// GetConversation returns the full conversation, including messages, by
// its surrogate id. ErrNotFound if no such conversation exists.
func (s *Store) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	var conv model.Conversation
	var providerTag string
	var temperature sql.NullFloat64
	var maxTokens sql.NullInt64
	var rawJSON []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, p.tag, c.external_id, c.title, c.model, c.created_at, c.updated_at, c.system_prompt, c.temperature, c.max_tokens, c.raw_json
		FROM conversations c JOIN providers p ON p.id = c.provider_id
		WHERE c.id = ?`, id,
	).Scan(&conv.ID, &providerTag, &conv.ExternalID, &conv.Title, &conv.Model, &conv.CreatedAt, &conv.UpdatedAt, &conv.SystemPrompt, &temperature, &maxTokens, &rawJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conversation{}, ErrNotFound
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("store: get conversation %s: %w", id, err)
	}

	conv.Provider = model.ProviderTag(providerTag)
	conv.RawJSON = rawJSON
	if temperature.Valid {
		conv.Temperature = &temperature.Float64
	}
	if maxTokens.Valid {
		v := int(maxTokens.Int64)
		conv.MaxTokens = &v
	}

	messages, err := s.GetMessages(ctx, id)
	if err != nil {
		return model.Conversation{}, err
	}
	conv.Messages = messages
	conv.MessageCount = len(messages)

	return conv, nil
}
