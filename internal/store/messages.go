package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emberlane/chatvault/internal/model"
)

// GetMessages returns a conversation's messages in display order.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, model_override, timestamp, position, synthesized, attachments
		FROM messages WHERE conversation_id = ? ORDER BY position ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("store: get messages for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		var synthesized int
		var attachmentsJSON string

		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.ModelOverride, &m.Timestamp, &m.Position, &synthesized, &attachmentsJSON); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.Role = model.Role(role)
		m.Synthesized = synthesized != 0

		if attachmentsJSON != "" && attachmentsJSON != "[]" {
			if err := json.Unmarshal([]byte(attachmentsJSON), &m.Attachments); err != nil {
				return nil, fmt.Errorf("store: decode attachments for message %s: %w", m.ID, err)
			}
		}

		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}
	return out, nil
}
