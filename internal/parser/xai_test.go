package parser

import (
	"context"
	"testing"
	"time"
)

func TestXAIParser_Sample(t *testing.T) {
	p := NewXAIParser()
	convs, warnings, err := p.Parse(context.Background(), "testdata/xai/sample.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	conv := convs[0]
	if conv.ExternalID != "xai-conv-1" {
		t.Errorf("unexpected external id: %q", conv.ExternalID)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages (unmapped role dropped), got %d", len(conv.Messages))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning for the unmapped role, got %v", warnings)
	}

	first := conv.Messages[0]
	if !first.Timestamp.Equal(time.Unix(1700004000, 0).UTC()) {
		t.Errorf("unexpected timestamp: %v", first.Timestamp)
	}
	if len(conv.RawJSON) == 0 {
		t.Error("expected RawJSON to be populated with the source conversation object")
	}
}
