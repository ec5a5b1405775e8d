// Package generative answers questions by prompting a hosted language model.
package generative

import (
	"context"
	"fmt"
	"strings"

	"github.com/hetulpatel/reportqa/internal/llm"
	"github.com/hetulpatel/reportqa/internal/logging"
	"github.com/hetulpatel/reportqa/internal/qa"
)

// DefaultCharBudget is the context length, in characters, sent to the model.
const DefaultCharBudget = 6000

const systemPrompt = "You answer questions about a business report. Use only the report text provided. If the report does not contain the answer, say so in one sentence. Answer concisely."

// Config controls the backend behavior.
type Config struct {
	Name         string
	Completer    llm.Completer
	SystemPrompt string
	// CharBudget hard-cuts the context before prompting. Zero sends it whole.
	CharBudget int
}

// Backend is a qa.Backend over an llm.Completer.
type Backend struct {
	name         string
	llm          llm.Completer
	systemPrompt string
	budget       int
}

// New creates a generative backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("generative: llm client is required")
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "generative"
	}
	system := cfg.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = systemPrompt
	}
	budget := cfg.CharBudget
	if budget < 0 {
		budget = 0
	}
	return &Backend{
		name:         name,
		llm:          cfg.Completer,
		systemPrompt: system,
		budget:       budget,
	}, nil
}

func (b *Backend) Name() string {
	return b.name
}

// Answer runs the prompt and returns the model's reply.
func (b *Backend) Answer(ctx context.Context, text, question string) (qa.Answer, error) {
	if b == nil {
		return qa.Answer{}, fmt.Errorf("generative: backend is nil")
	}

	excerpt, cut := truncateText(text, b.budget)
	if cut > 0 {
		logging.Warnf("[%s] context truncated to %d characters; %d characters of the report were not sent", b.name, b.budget, cut)
	}

	raw, err := b.llm.Complete(ctx, b.systemPrompt, buildUserPrompt(excerpt, question))
	if err != nil {
		return qa.Answer{}, fmt.Errorf("llm call: %w", err)
	}
	return qa.Unscored(raw), nil
}

func buildUserPrompt(excerpt, question string) string {
	if strings.TrimSpace(excerpt) == "" {
		excerpt = "(the report contains no extractable text)"
	}
	return strings.Join([]string{
		"Answer the question using the report below.",
		"Quote figures exactly as they appear in the report.",
		"Report:\n\"\"\"\n" + excerpt + "\n\"\"\"",
		"Question: " + strings.TrimSpace(question),
		"Answer:",
	}, "\n\n")
}

// truncateText keeps the first limit characters of text and reports how many were dropped.
func truncateText(text string, limit int) (string, int) {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return text, 0
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, 0
	}
	return string(runes[:limit]) + " ... (truncated)", len(runes) - limit
}
