package model

import (
	"encoding/json"
	"testing"
)

func TestFlattenContent_PlainString(t *testing.T) {
	text, atts := FlattenContent(json.RawMessage(`"hello world"`))
	if text != "hello world" {
		t.Errorf("got %q", text)
	}
	if atts != nil {
		t.Errorf("expected no attachments, got %v", atts)
	}
}

func TestFlattenContent_Parts(t *testing.T) {
	text, _ := FlattenContent(json.RawMessage(`{"parts": ["line one", "line two"]}`))
	if text != "line one\nline two" {
		t.Errorf("got %q", text)
	}
}

func TestFlattenContent_ContentBlocks(t *testing.T) {
	raw := json.RawMessage(`{"content": [{"type": "text", "text": "hi"}, {"type": "tool_use", "text": "ignored"}]}`)
	text, _ := FlattenContent(raw)
	if text != "hi" {
		t.Errorf("got %q", text)
	}
}

func TestFlattenContent_BareBlockArray(t *testing.T) {
	raw := json.RawMessage(`[{"type": "text", "text": "a"}, {"type": "text", "text": "b"}]`)
	text, _ := FlattenContent(raw)
	if text != "a\nb" {
		t.Errorf("got %q", text)
	}
}

func TestFlattenContent_Empty(t *testing.T) {
	text, atts := FlattenContent(nil)
	if text != "" || atts != nil {
		t.Errorf("expected empty result, got %q %v", text, atts)
	}
}

func TestFlattenContent_UnknownBlockBecomesAttachment(t *testing.T) {
	raw := json.RawMessage(`[{"type": "workspace_context", "content": "some file contents"}]`)
	text, atts := FlattenContent(raw)
	if text != "" {
		t.Errorf("expected no inlined text, got %q", text)
	}
	if len(atts) != 1 || atts[0].ExtractedText == "" {
		t.Errorf("expected one attachment with extracted text, got %v", atts)
	}
}
