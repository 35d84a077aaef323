package parser

import (
	"context"
	"testing"
)

func TestGeminiParser_Sample(t *testing.T) {
	p := NewGeminiParser()
	convs, warnings, err := p.Parse(context.Background(), "testdata/gemini/sample.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}

	turnsConv := findConv(convs, "gemini-conv-1")
	if turnsConv == nil {
		t.Fatal("gemini-conv-1 not found")
	}
	if len(turnsConv.Messages) != 4 {
		t.Fatalf("expected 4 messages from turns[], got %d", len(turnsConv.Messages))
	}
	if turnsConv.SystemPrompt != "" {
		t.Error("gemini conversations must never carry a system prompt")
	}
	if len(turnsConv.RawJSON) == 0 {
		t.Error("expected RawJSON to be populated with the source conversation object")
	}

	chunkedConv := findConv(convs, "gemini-conv-2")
	if chunkedConv == nil {
		t.Fatal("gemini-conv-2 not found")
	}
	// The third chunk has an unrecognized type and must be dropped,
	// leaving just the user message and the model summary.
	if len(chunkedConv.Messages) != 2 {
		t.Fatalf("expected 2 messages from chunkedPrompt (image chunk dropped), got %d", len(chunkedConv.Messages))
	}

	foundUnknownChunkWarning := false
	foundNoSystemPromptNote := false
	for _, w := range warnings {
		if w.Message == `unknown chunkedPrompt chunk type "image", skipped` {
			foundUnknownChunkWarning = true
		}
		if w.Message == "gemini exports carry no system prompt field; none was extracted" {
			foundNoSystemPromptNote = true
		}
	}
	if !foundUnknownChunkWarning {
		t.Errorf("expected a warning about the unknown chunk type, got %v", warnings)
	}
	if !foundNoSystemPromptNote {
		t.Errorf("expected an informational no-system-prompt note, got %v", warnings)
	}
}
