package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/emberlane/chatvault/internal/model"
)

// XAIParser reads an xAI/Grok export: a JSON file with a top-level list
// of conversation records, each with a flat messages[] array of
// {role, content, create_time} (spec.md §4.2). No branching, no
// system-prompt field, no per-provider role aliasing beyond the shared
// canonical set.
type XAIParser struct{}

func NewXAIParser() *XAIParser { return &XAIParser{} }

func (p *XAIParser) Provider() model.ProviderTag { return model.ProviderXAI }

type xaiExport struct {
	ConversationID string       `json:"conversation_id"`
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Model          string       `json:"model"`
	Messages       []xaiMessage `json:"messages"`
}

type xaiMessage struct {
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	CreateTime json.Number `json:"create_time"`
}

func (p *XAIParser) Parse(ctx context.Context, sourcePath string) ([]model.Conversation, []Warning, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("xai: read %s: %w", sourcePath, err)
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, nil, fmt.Errorf("xai: root is not a JSON array of conversations: %w", err)
	}

	var conversations []model.Conversation
	var warnings []Warning

	for i, raw := range rawItems {
		select {
		case <-ctx.Done():
			return conversations, warnings, ctx.Err()
		default:
		}

		var export xaiExport
		if err := json.Unmarshal(raw, &export); err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("skipped conversation at index %d: malformed JSON: %v", i, err)})
			continue
		}

		externalID := firstNonEmpty(export.ConversationID, export.ID)
		if externalID == "" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("skipped conversation at index %d: no external id", i)})
			continue
		}

		conv, warns := p.buildConversation(externalID, export, raw)
		warnings = append(warnings, warns...)
		if len(conv.Messages) == 0 {
			warnings = append(warnings, Warning{ExternalID: externalID, Message: "no messages recovered, conversation skipped"})
			continue
		}
		conversations = append(conversations, conv)
	}

	return conversations, warnings, nil
}

func (p *XAIParser) buildConversation(externalID string, export xaiExport, raw json.RawMessage) (model.Conversation, []Warning) {
	var warnings []Warning

	conv := model.Conversation{
		Provider:   model.ProviderXAI,
		ExternalID: externalID,
		Title:      export.Title,
		Model:      export.Model,
		RawJSON:    append([]byte(nil), raw...),
	}

	var minTS, maxTS time.Time
	position := 0

	for _, m := range export.Messages {
		role, err := model.ParseRole(m.Role)
		if err != nil {
			warnings = append(warnings, Warning{ExternalID: externalID, Message: fmt.Sprintf("dropped message with unmapped role %q", m.Role)})
			continue
		}
		if m.Content == "" {
			continue
		}

		msg := model.Message{
			ConversationID: externalID,
			Role:           role,
			Content:        m.Content,
			Position:       position,
		}
		if ts, ok := parseNumberTimestamp(m.CreateTime); ok {
			msg.Timestamp = ts
			minTS, maxTS = expandRange(minTS, maxTS, ts)
		}
		conv.Messages = append(conv.Messages, msg)
		position++
	}

	conv.CreatedAt, conv.UpdatedAt = minTS, maxTS
	conv.MessageCount = len(conv.Messages)
	return conv, warnings
}
