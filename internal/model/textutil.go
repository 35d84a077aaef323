package model

import (
	"encoding/json"
	"strings"
)

// contentBlock is the shape shared by every provider's "list of typed
// parts" content encoding: a type tag plus an optional text field, with
// everything else (tool_use, thinking, tool_result, image references)
// skipped rather than rejected.
type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Content json.RawMessage `json:"content,omitempty"`
}

// FlattenContent normalizes the several shapes provider exports use for
// message content into a single string plus any attachments discovered
// along the way (spec.md §4.1). It never errors: content it cannot
// interpret contributes nothing to the returned string.
//
// Recognized shapes:
//   - a bare JSON string
//   - {"parts": [...]}  (ChatGPT node content)
//   - {"content": [{"type","text"}, ...]}
//   - a bare array of content blocks
func FlattenContent(raw json.RawMessage) (text string, attachments []Attachment) {
	if len(raw) == 0 {
		return "", nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}

	var withParts struct {
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(raw, &withParts); err == nil && withParts.Parts != nil {
		return flattenParts(withParts.Parts)
	}

	var withContent struct {
		Content []contentBlock `json:"content"`
	}
	if err := json.Unmarshal(raw, &withContent); err == nil && withContent.Content != nil {
		return flattenBlocks(withContent.Content)
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return flattenBlocks(blocks)
	}

	return "", nil
}

func flattenParts(parts []json.RawMessage) (string, []Attachment) {
	var lines []string
	for _, part := range parts {
		var s string
		if err := json.Unmarshal(part, &s); err == nil {
			if s != "" {
				lines = append(lines, s)
			}
			continue
		}
		// Non-string parts (e.g. image/asset references) are skipped;
		// they carry no extractable text.
	}
	return strings.Join(lines, "\n"), nil
}

func flattenBlocks(blocks []contentBlock) (string, []Attachment) {
	var lines []string
	var attachments []Attachment
	for _, b := range blocks {
		switch b.Type {
		case "text", "":
			if b.Text != "" {
				lines = append(lines, b.Text)
			}
		case "tool_use", "tool_result", "thinking":
			// Deliberately dropped: never contributes to displayed content.
			continue
		default:
			// Unknown block type: preserve as an attachment reference so
			// it isn't silently lost, but never inline it into content.
			if len(b.Content) > 0 {
				attachments = append(attachments, Attachment{
					MimeType:      b.Type,
					ExtractedText: rawToString(b.Content),
				})
			}
		}
	}
	return strings.Join(lines, "\n"), attachments
}

// rawToString unwraps a JSON string value if raw is one; otherwise it
// returns raw's bytes verbatim.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
