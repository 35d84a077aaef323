package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/emberlane/chatvault/internal/model"
)

// GeminiParser reads a Gemini export. Two shapes are seen in the wild
// (spec.md §4.2): a conversation with turns[] of user_input/model_output
// pairs, or a conversation with a chunkedPrompt of interleaved chunks
// carrying their own role metadata. Neither carries a system prompt.
type GeminiParser struct{}

func NewGeminiParser() *GeminiParser { return &GeminiParser{} }

func (p *GeminiParser) Provider() model.ProviderTag { return model.ProviderGemini }

var geminiRoleAliases = map[string]model.Role{
	"user":  model.RoleUser,
	"human": model.RoleUser,
	"model": model.RoleAssistant,
	"bard":  model.RoleAssistant,
}

type geminiExport struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Title          string         `json:"title"`
	CreateTime     json.Number    `json:"create_time"`
	Turns          []geminiTurn   `json:"turns"`
	ChunkedPrompt  *geminiChunked `json:"chunkedPrompt"`
}

type geminiTurn struct {
	UserInput   *geminiTurnText `json:"user_input"`
	ModelOutput *geminiTurnText `json:"model_output"`
}

type geminiTurnText struct {
	Text       string      `json:"text"`
	CreateTime json.Number `json:"create_time"`
}

type geminiChunked struct {
	Chunks []geminiChunk `json:"chunks"`
}

type geminiChunk struct {
	Role       string      `json:"role"`
	Text       string      `json:"text"`
	Type       string      `json:"type"`
	CreateTime json.Number `json:"create_time"`
}

func (p *GeminiParser) Parse(ctx context.Context, sourcePath string) ([]model.Conversation, []Warning, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini: read %s: %w", sourcePath, err)
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, nil, fmt.Errorf("gemini: root is not a JSON array of conversations: %w", err)
	}

	var conversations []model.Conversation
	var warnings []Warning

	for i, raw := range rawItems {
		select {
		case <-ctx.Done():
			return conversations, warnings, ctx.Err()
		default:
		}

		var export geminiExport
		if err := json.Unmarshal(raw, &export); err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("skipped conversation at index %d: malformed JSON: %v", i, err)})
			continue
		}

		externalID := firstNonEmpty(export.ID, export.ConversationID)
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

	if len(conversations) > 0 {
		warnings = append(warnings, Warning{Message: "gemini exports carry no system prompt field; none was extracted"})
	}

	return conversations, warnings, nil
}

func (p *GeminiParser) buildConversation(externalID string, export geminiExport, raw json.RawMessage) (model.Conversation, []Warning) {
	var warnings []Warning

	conv := model.Conversation{
		Provider:   model.ProviderGemini,
		ExternalID: externalID,
		Title:      export.Title,
		RawJSON:    append([]byte(nil), raw...),
	}

	convTS, hasConvTS := parseNumberTimestamp(export.CreateTime)

	var minTS, maxTS time.Time
	position := 0

	addMessage := func(role model.Role, text string, ts json.Number) {
		if text == "" {
			return
		}
		msg := model.Message{
			ConversationID: externalID,
			Role:           role,
			Content:        text,
			Position:       position,
		}
		if t, ok := parseNumberTimestamp(ts); ok {
			msg.Timestamp = t
			minTS, maxTS = expandRange(minTS, maxTS, t)
		} else if hasConvTS {
			// No per-turn timestamp: fall back to the single
			// conversation-level timestamp, order preserved by index.
			msg.Timestamp = convTS
			minTS, maxTS = expandRange(minTS, maxTS, convTS)
		}
		conv.Messages = append(conv.Messages, msg)
		position++
	}

	switch {
	case len(export.Turns) > 0:
		for _, turn := range export.Turns {
			if turn.UserInput != nil {
				addMessage(model.RoleUser, turn.UserInput.Text, turn.UserInput.CreateTime)
			}
			if turn.ModelOutput != nil {
				addMessage(model.RoleAssistant, turn.ModelOutput.Text, turn.ModelOutput.CreateTime)
			}
		}

	case export.ChunkedPrompt != nil:
		for _, chunk := range export.ChunkedPrompt.Chunks {
			if chunk.Type != "" && chunk.Type != "text" {
				warnings = append(warnings, Warning{
					ExternalID: externalID,
					Message:    fmt.Sprintf("unknown chunkedPrompt chunk type %q, skipped", chunk.Type),
				})
				continue
			}
			role, err := model.ParseRoleFrom(geminiRoleAliases, chunk.Role)
			if err != nil {
				warnings = append(warnings, Warning{
					ExternalID: externalID,
					Message:    fmt.Sprintf("unknown chunkedPrompt role %q, skipped", chunk.Role),
				})
				continue
			}
			addMessage(role, chunk.Text, chunk.CreateTime)
		}

	default:
		warnings = append(warnings, Warning{ExternalID: externalID, Message: "neither turns[] nor chunkedPrompt present"})
	}

	if !minTS.IsZero() {
		conv.CreatedAt, conv.UpdatedAt = minTS, maxTS
	} else if hasConvTS {
		conv.CreatedAt, conv.UpdatedAt = convTS, convTS
	}

	conv.MessageCount = len(conv.Messages)
	return conv, warnings
}
