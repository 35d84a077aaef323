// Package parser turns provider-specific export artifacts into the
// canonical model.Conversation stream storage and ingestion consume.
//
// Every parser shares one contract (spec.md §4.2): consume one source
// artifact (a file or a directory) and produce a finite sequence of
// canonical conversations, each with its messages in display order.
// A single malformed conversation is skipped with a warning; it never
// fails the whole run. Only a root-structure-unrecognized failure is
// fatal, and it is returned as an error rather than a panic.
package parser

import (
	"context"
	"fmt"

	"github.com/emberlane/chatvault/internal/model"
)

// Warning is a non-fatal diagnostic recorded during a parse. ExternalID
// is the conversation the warning pertains to, or "" for a file-level
// note (Gemini's no-system-prompt note, for instance).
type Warning struct {
	ExternalID string
	Message    string
}

func (w Warning) String() string {
	if w.ExternalID == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.ExternalID, w.Message)
}

// Parser is implemented by every provider-specific parser.
type Parser interface {
	// Provider is the stable short name this parser produces
	// conversations for.
	Provider() model.ProviderTag

	// Parse reads sourcePath (a file or directory, depending on the
	// provider) and returns the conversations it could recover, plus
	// any warnings about conversations it had to skip. A non-nil error
	// means the root structure itself was unrecognized and the whole
	// run must be treated as failed (spec.md §7).
	Parse(ctx context.Context, sourcePath string) ([]model.Conversation, []Warning, error)
}

// ForProvider returns the Parser registered for tag, or an error if tag
// is not one this build supports.
func ForProvider(tag model.ProviderTag) (Parser, error) {
	switch tag {
	case model.ProviderChatGPT:
		return NewChatGPTParser(), nil
	case model.ProviderClaude:
		return NewClaudeParser(), nil
	case model.ProviderGemini:
		return NewGeminiParser(), nil
	case model.ProviderXAI:
		return NewXAIParser(), nil
	case model.ProviderZed:
		return NewZedParser(), nil
	default:
		return nil, fmt.Errorf("parser: unsupported provider %q", tag)
	}
}
