// Package backends turns resolved configuration into the concrete extractor and answering backend.
package backends

import (
	"fmt"

	"github.com/hetulpatel/reportqa/internal/config"
	"github.com/hetulpatel/reportqa/internal/document"
	"github.com/hetulpatel/reportqa/internal/extractive"
	"github.com/hetulpatel/reportqa/internal/generative"
	"github.com/hetulpatel/reportqa/internal/llm"
	"github.com/hetulpatel/reportqa/internal/qa"
)

// NewBackend builds the backend named by cfg.Kind.
func NewBackend(cfg config.BackendConfig) (qa.Backend, error) {
	switch cfg.Kind {
	case config.BackendLexical, "":
		return extractive.NewLexical(), nil
	case config.BackendHF:
		hf, err := extractive.NewHuggingFace(extractive.HFConfig{
			Token:   cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return hf, nil
	case config.BackendNebius, config.BackendOpenAI:
		completer, err := newCompleter(cfg)
		if err != nil {
			return nil, err
		}
		gen, err := generative.New(generative.Config{
			Name:         cfg.Kind,
			Completer:    completer,
			SystemPrompt: cfg.SystemPrompt,
			CharBudget:   cfg.CharBudget,
		})
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("backends: unknown backend %q", cfg.Kind)
	}
}

func newCompleter(cfg config.BackendConfig) (llm.Completer, error) {
	llmCfg := llm.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if cfg.Kind == config.BackendOpenAI {
		client, err := llm.NewOfficial(llmCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := llm.New(llmCfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewAnswerer wraps the configured backend with the per-call timeout.
func NewAnswerer(cfg config.BackendConfig) (*qa.Answerer, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	var opts []qa.Option
	if cfg.AnswerTimeout > 0 {
		opts = append(opts, qa.WithTimeout(cfg.AnswerTimeout))
	}
	return qa.New(backend, opts...)
}

// NewExtractor returns the text extractor named by cfg.Extractor.
func NewExtractor(cfg *config.Config) (document.Extractor, error) {
	switch cfg.Extractor {
	case config.ExtractorPDF, "":
		return document.NewPDFExtractor(), nil
	case config.ExtractorPDFToText:
		return document.NewCommandExtractor(cfg.PDFToTextBin), nil
	default:
		return nil, fmt.Errorf("backends: unknown extractor %q", cfg.Extractor)
	}
}
