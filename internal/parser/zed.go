package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emberlane/chatvault/internal/model"
)

// zedSynthesisWindow is the fixed window Zed conversation timestamps are
// back-dated across, since the format carries none of its own
// (spec.md §4.2, §8 scenario C).
const zedSynthesisWindow = time.Hour

// ZedParser reads a directory of Zed assistant panel exports, one JSON
// file per conversation. The format has no per-message timestamps; they
// are synthesized from the file's modification time.
type ZedParser struct{}

func NewZedParser() *ZedParser { return &ZedParser{} }

func (p *ZedParser) Provider() model.ProviderTag { return model.ProviderZed }

type zedExport struct {
	WorkspaceContext string       `json:"workspace_context"`
	SelectedText     string       `json:"selected_text"`
	Messages         []zedMessage `json:"messages"`
}

type zedMessage struct {
	Role    string `json:"role"`
	Content string `json:"text"`
}

func (p *ZedParser) Parse(ctx context.Context, sourcePath string) ([]model.Conversation, []Warning, error) {
	entries, err := os.ReadDir(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("zed: read dir %s: %w", sourcePath, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var conversations []model.Conversation
	var warnings []Warning

	for _, name := range names {
		select {
		case <-ctx.Done():
			return conversations, warnings, ctx.Err()
		default:
		}

		fullPath := filepath.Join(sourcePath, name)
		externalID := strings.TrimSuffix(name, ".json")

		conv, warns, ok := p.parseFile(externalID, fullPath)
		warnings = append(warnings, warns...)
		if !ok {
			continue
		}
		conversations = append(conversations, conv)
	}

	return conversations, warnings, nil
}

func (p *ZedParser) parseFile(externalID, fullPath string) (model.Conversation, []Warning, bool) {
	var warnings []Warning

	info, err := os.Stat(fullPath)
	if err != nil {
		return model.Conversation{}, append(warnings, Warning{ExternalID: externalID, Message: fmt.Sprintf("stat failed: %v", err)}), false
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return model.Conversation{}, append(warnings, Warning{ExternalID: externalID, Message: fmt.Sprintf("read failed: %v", err)}), false
	}

	var export zedExport
	if err := json.Unmarshal(data, &export); err != nil {
		return model.Conversation{}, append(warnings, Warning{ExternalID: externalID, Message: fmt.Sprintf("malformed JSON: %v", err)}), false
	}

	var rawMessages []zedMessage
	for _, m := range export.Messages {
		role, err := model.ParseRole(m.Role)
		if err != nil {
			warnings = append(warnings, Warning{ExternalID: externalID, Message: fmt.Sprintf("dropped message with unmapped role %q", m.Role)})
			continue
		}
		if m.Content == "" {
			continue
		}
		rawMessages = append(rawMessages, zedMessage{Role: string(role), Content: m.Content})
	}

	if len(rawMessages) == 0 {
		return model.Conversation{}, append(warnings, Warning{ExternalID: externalID, Message: "no messages recovered, conversation skipped"}), false
	}

	updatedAt := info.ModTime()
	createdAt := updatedAt.Add(-zedSynthesisWindow)

	conv := model.Conversation{
		Provider:   model.ProviderZed,
		ExternalID: externalID,
		Title:      externalID,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
		RawJSON:    append([]byte(nil), data...),
	}

	n := len(rawMessages)
	step := zedSynthesisWindow / time.Duration(n)

	addedFirstUserAttachment := false
	for i, m := range rawMessages {
		role, _ := model.ParseRole(m.Role)

		msg := model.Message{
			ConversationID: externalID,
			Role:           role,
			Content:        m.Content,
			Position:       i,
			Timestamp:      createdAt.Add(step * time.Duration(i)),
			Synthesized:    true,
		}

		if !addedFirstUserAttachment && role == model.RoleUser {
			if src := firstNonEmpty(export.WorkspaceContext, export.SelectedText); src != "" {
				msg.Attachments = append(msg.Attachments, model.Attachment{
					Name:          "workspace_context",
					ExtractedText: src,
				})
				addedFirstUserAttachment = true
			}
		}

		conv.Messages = append(conv.Messages, msg)
	}

	conv.MessageCount = len(conv.Messages)
	warnings = append(warnings, Warning{ExternalID: externalID, Message: "synthesized_timestamps"})
	return conv, warnings, true
}
