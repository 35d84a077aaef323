package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/emberlane/chatvault/internal/model"
)

// ClaudeParser reads a Claude export: a JSON file containing an array of
// conversation objects, each with a flat chat_messages[] array (spec.md
// §4.2). Unlike ChatGPT's export this carries no branch structure, so
// position is simply array order.
type ClaudeParser struct{}

func NewClaudeParser() *ClaudeParser { return &ClaudeParser{} }

func (p *ClaudeParser) Provider() model.ProviderTag { return model.ProviderClaude }

type claudeExport struct {
	UUID         string              `json:"uuid"`
	Name         string              `json:"name"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
	ChatMessages []claudeChatMessage `json:"chat_messages"`
}

type claudeChatMessage struct {
	UUID        string               `json:"uuid"`
	Sender      string               `json:"sender"`
	Text        string               `json:"text"`
	CreatedAt   string               `json:"created_at"`
	Attachments []claudeAttachment   `json:"attachments"`
	Content     []claudeContentBlock `json:"content"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeAttachment struct {
	FileName         string `json:"file_name"`
	FileType         string `json:"file_type"`
	ExtractedContent string `json:"extracted_content"`
}

var claudeRoleAliases = map[string]model.Role{
	"human":     model.RoleUser,
	"assistant": model.RoleAssistant,
}

func (p *ClaudeParser) Parse(ctx context.Context, sourcePath string) ([]model.Conversation, []Warning, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("claude: read %s: %w", sourcePath, err)
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, nil, fmt.Errorf("claude: root is not a JSON array of conversations: %w", err)
	}

	var conversations []model.Conversation
	var warnings []Warning

	for i, raw := range rawItems {
		select {
		case <-ctx.Done():
			return conversations, warnings, ctx.Err()
		default:
		}

		var export claudeExport
		if err := json.Unmarshal(raw, &export); err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("skipped conversation at index %d: malformed JSON: %v", i, err)})
			continue
		}

		if export.UUID == "" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("skipped conversation at index %d: no uuid", i)})
			continue
		}

		conv, warns := p.buildConversation(export, raw)
		warnings = append(warnings, warns...)
		if len(conv.Messages) == 0 {
			warnings = append(warnings, Warning{ExternalID: export.UUID, Message: "no messages recovered, conversation skipped"})
			continue
		}
		conversations = append(conversations, conv)
	}

	return conversations, warnings, nil
}

func (p *ClaudeParser) buildConversation(export claudeExport, raw json.RawMessage) (model.Conversation, []Warning) {
	var warnings []Warning

	conv := model.Conversation{
		Provider:   model.ProviderClaude,
		ExternalID: export.UUID,
		Title:      export.Name,
		RawJSON:    append([]byte(nil), raw...),
	}

	if ts, ok := model.ParseTimestamp(export.CreatedAt); ok {
		conv.CreatedAt = ts
	}
	if ts, ok := model.ParseTimestamp(export.UpdatedAt); ok {
		conv.UpdatedAt = ts
	} else {
		conv.UpdatedAt = conv.CreatedAt
	}

	position := 0
	for _, cm := range export.ChatMessages {
		role, err := model.ParseRoleFrom(claudeRoleAliases, cm.Sender)
		if err != nil {
			warnings = append(warnings, Warning{ExternalID: export.UUID, Message: fmt.Sprintf("dropped message with unmapped sender %q", cm.Sender)})
			continue
		}

		text := cm.Text
		if text == "" && len(cm.Content) > 0 {
			for _, block := range cm.Content {
				if block.Type == "text" || block.Type == "" {
					if text != "" {
						text += "\n"
					}
					text += block.Text
				}
			}
		}

		var attachments []model.Attachment
		for _, a := range cm.Attachments {
			attachments = append(attachments, model.Attachment{
				Name:          a.FileName,
				MimeType:      a.FileType,
				ExtractedText: a.ExtractedContent,
			})
		}

		if text == "" && len(attachments) == 0 {
			continue
		}

		msg := model.Message{
			ConversationID: export.UUID,
			Role:           role,
			Content:        text,
			Position:       position,
			Attachments:    attachments,
		}
		if ts, ok := model.ParseTimestamp(cm.CreatedAt); ok {
			msg.Timestamp = ts
		}
		conv.Messages = append(conv.Messages, msg)
		position++
	}

	conv.MessageCount = len(conv.Messages)
	return conv, warnings
}
