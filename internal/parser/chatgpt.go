package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/emberlane/chatvault/internal/model"
)

// ChatGPTParser reads a ChatGPT conversations.json export: a JSON file
// whose root is an array of conversation objects, each carrying a
// `mapping` DAG of nodes (spec.md §4.2).
type ChatGPTParser struct{}

func NewChatGPTParser() *ChatGPTParser { return &ChatGPTParser{} }

func (p *ChatGPTParser) Provider() model.ProviderTag { return model.ProviderChatGPT }

type chatgptExport struct {
	Title          string                 `json:"title"`
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	CreateTime     json.Number            `json:"create_time"`
	Model          string                 `json:"model"`
	Mapping        map[string]chatgptNode `json:"mapping"`
}

type chatgptNode struct {
	ID       string          `json:"id"`
	Message  *chatgptMessage `json:"message"`
	Parent   *string         `json:"parent"`
	Children []string        `json:"children"`
}

type chatgptMessage struct {
	ID         string          `json:"id"`
	Author     chatgptAuthor   `json:"author"`
	CreateTime json.Number     `json:"create_time"`
	Content    json.RawMessage `json:"content"`
}

type chatgptAuthor struct {
	Role string `json:"role"`
}

// chatgptContent is ChatGPT's own content shape: {"content_type": "text",
// "parts": [...]}. model.FlattenContent already understands the
// {"parts": [...]} case; this type exists only to pull the parts array
// out before handing it to FlattenContent.
type chatgptContent struct {
	Parts []json.RawMessage `json:"parts"`
}

func (p *ChatGPTParser) Parse(ctx context.Context, sourcePath string) ([]model.Conversation, []Warning, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("chatgpt: read %s: %w", sourcePath, err)
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, nil, fmt.Errorf("chatgpt: root is not a JSON array: %w", err)
	}

	var conversations []model.Conversation
	var warnings []Warning

	for _, raw := range rawItems {
		select {
		case <-ctx.Done():
			return conversations, warnings, ctx.Err()
		default:
		}

		var export chatgptExport
		if err := json.Unmarshal(raw, &export); err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("skipped conversation: malformed JSON: %v", err)})
			continue
		}

		externalID := firstNonEmpty(export.ID, export.ConversationID)
		if externalID == "" {
			warnings = append(warnings, Warning{Message: "skipped conversation: no external id"})
			continue
		}

		conv, warns, ok := p.buildConversation(externalID, export, raw)
		warnings = append(warnings, warns...)
		if !ok {
			continue
		}
		conversations = append(conversations, conv)
	}

	return conversations, warnings, nil
}

func (p *ChatGPTParser) buildConversation(externalID string, export chatgptExport, raw json.RawMessage) (model.Conversation, []Warning, bool) {
	var warnings []Warning

	root := findRoot(export.Mapping)
	if root == "" {
		return model.Conversation{}, append(warnings, Warning{ExternalID: externalID, Message: "no root node found, conversation skipped"}), false
	}

	ordered := traverseLatestChild(export.Mapping, root)

	conv := model.Conversation{
		Provider:   model.ProviderChatGPT,
		ExternalID: externalID,
		Title:      export.Title,
		Model:      export.Model,
		RawJSON:    append([]byte(nil), raw...),
	}

	seenSystem := false
	position := 0
	var minTS, maxTS time.Time

	for _, nodeID := range ordered {
		node := export.Mapping[nodeID]
		if node.Message == nil || node.Message.Author.Role == "" {
			continue
		}

		role, err := model.ParseRole(node.Message.Author.Role)
		if err != nil {
			warnings = append(warnings, Warning{ExternalID: externalID, Message: fmt.Sprintf("dropped message with unmapped role %q", node.Message.Author.Role)})
			continue
		}

		text, attachments := model.FlattenContent(extractParts(node.Message.Content))
		if text == "" && len(attachments) == 0 {
			continue
		}

		ts, hasTS := parseNumberTimestamp(node.Message.CreateTime)

		if role == model.RoleSystem && !seenSystem {
			seenSystem = true
			conv.SystemPrompt = text
			if hasTS {
				minTS, maxTS = expandRange(minTS, maxTS, ts)
			}
			continue
		}

		msg := model.Message{
			ConversationID: externalID,
			Role:           role,
			Content:        text,
			Position:       position,
			Attachments:    attachments,
		}
		if hasTS {
			msg.Timestamp = ts
			minTS, maxTS = expandRange(minTS, maxTS, ts)
		}
		conv.Messages = append(conv.Messages, msg)
		position++
	}

	if len(conv.Messages) == 0 {
		return model.Conversation{}, append(warnings, Warning{ExternalID: externalID, Message: "no messages recovered, conversation skipped"}), false
	}

	if !minTS.IsZero() {
		conv.CreatedAt, conv.UpdatedAt = minTS, maxTS
	} else if ts, ok := parseNumberTimestamp(export.CreateTime); ok {
		conv.CreatedAt, conv.UpdatedAt = ts, ts
	}

	conv.MessageCount = len(conv.Messages)
	return conv, warnings, true
}

// expandRange grows [minTS, maxTS] to include ts, treating a zero minTS
// as "not yet set" rather than a real lower bound.
func expandRange(minTS, maxTS, ts time.Time) (time.Time, time.Time) {
	if minTS.IsZero() || ts.Before(minTS) {
		minTS = ts
	}
	if ts.After(maxTS) {
		maxTS = ts
	}
	return minTS, maxTS
}

func extractParts(raw json.RawMessage) json.RawMessage {
	var c chatgptContent
	if err := json.Unmarshal(raw, &c); err == nil && c.Parts != nil {
		wrapped, err := json.Marshal(struct {
			Parts []json.RawMessage `json:"parts"`
		}{Parts: c.Parts})
		if err == nil {
			return wrapped
		}
	}
	return raw
}

// findRoot returns the id of the node with no parent, preferring a
// deterministic choice (lowest id, and one that actually has
// descendants) if more than one candidate exists — malformed exports
// occasionally carry orphaned childless nodes with parent=null that are
// not the true root.
func findRoot(mapping map[string]chatgptNode) string {
	var roots []string
	for id, node := range mapping {
		if node.Parent == nil || *node.Parent == "" {
			roots = append(roots, id)
		}
	}
	if len(roots) == 0 {
		return ""
	}
	sort.Strings(roots)
	for _, id := range roots {
		if len(mapping[id].Children) > 0 {
			return id
		}
	}
	return roots[0]
}

// traverseLatestChild walks the mapping DAG from root, always following
// the last entry in a node's Children slice (spec.md §4.2, §8 property
// 1): ChatGPT lists a node's branches oldest to newest, so the last
// child is always the most recently created branch, regardless of what
// its message create_time says — a regenerated earlier branch can carry
// a later timestamp than the branch ChatGPT itself considers current.
func traverseLatestChild(mapping map[string]chatgptNode, root string) []string {
	var ordered []string
	visited := make(map[string]bool)
	current := root

	for current != "" && !visited[current] {
		visited[current] = true
		ordered = append(ordered, current)

		node := mapping[current]
		if len(node.Children) == 0 {
			break
		}
		current = pickLatestChild(node.Children)
	}

	return ordered
}

func pickLatestChild(children []string) string {
	return children[len(children)-1]
}

func parseNumberTimestamp(n json.Number) (time.Time, bool) {
	if n == "" {
		return time.Time{}, false
	}
	f, err := n.Float64()
	if err != nil {
		return time.Time{}, false
	}
	return model.ParseTimestamp(f)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
