// Package config resolves process configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hetulpatel/reportqa/internal/generative"
)

// Backend kinds.
const (
	BackendLexical = "lexical"
	BackendHF      = "hf"
	BackendNebius  = "nebius"
	BackendOpenAI  = "openai"
)

// Extractor kinds.
const (
	ExtractorPDF       = "pdf"
	ExtractorPDFToText = "pdftotext"
)

// Config is the immutable process configuration.
type Config struct {
	DocumentPath string
	Extractor    string
	PDFToTextBin string
	HTTPAddr     string
	SQLitePath   string
	LogLevel     string
	Backend      BackendConfig
	Redis        RedisConfig
	Events       EventsConfig
	Page         PageConfig
}

// BackendConfig selects and configures the question-answering backend.
type BackendConfig struct {
	Kind          string
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Temperature   float32
	Timeout       time.Duration
	AnswerTimeout time.Duration
	CharBudget    int
	SystemPrompt  string
}

// RedisConfig enables the extracted-text cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// EventsConfig enables the answer event stream.
type EventsConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// credentialKeys lists, per backend, the names looked up in the environment and then the secret store.
var credentialKeys = map[string][]string{
	BackendHF:     {"HF_API_TOKEN", "HUGGINGFACEHUB_API_TOKEN"},
	BackendNebius: {"NEBIUS_API_KEY"},
	BackendOpenAI: {"OPENAI_API_KEY"},
}

// Load reads .env (if present), the environment, the optional page file and
// the credential for the selected backend.
func Load() (*Config, error) {
	envFile := envString("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	kind := strings.ToLower(envString("QA_BACKEND", BackendLexical))
	cfg := &Config{
		DocumentPath: envString("DOCUMENT_PATH", "my_report.pdf"),
		Extractor:    strings.ToLower(envString("EXTRACTOR", ExtractorPDF)),
		PDFToTextBin: os.Getenv("PDFTOTEXT_BIN"),
		HTTPAddr:     envString("HTTP_ADDR", ":8501"),
		SQLitePath:   os.Getenv("SQLITE_PATH"),
		LogLevel:     envString("LOG_LEVEL", "info"),
		Backend: BackendConfig{
			Kind:          kind,
			MaxTokens:     envInt("LLM_MAX_TOKENS", 800),
			Temperature:   float32(envFloat("LLM_TEMPERATURE", 0)),
			Timeout:       time.Duration(envInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
			AnswerTimeout: envDuration("ANSWER_TIMEOUT", 0),
			CharBudget:    envInt("CONTEXT_CHAR_BUDGET", generative.DefaultCharBudget),
			SystemPrompt:  os.Getenv("QA_SYSTEM_PROMPT"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
			TTL:      envDuration("DOC_CACHE_TTL", 240*time.Hour),
			Prefix:   envString("DOC_CACHE_PREFIX", "doctext"),
		},
		Events: EventsConfig{
			Enabled: envBool("QA_EVENTS_ENABLED", false),
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envString("QA_EVENTS_TOPIC", "reportqa.answers"),
		},
		Page: DefaultPage(),
	}

	switch kind {
	case BackendHF:
		cfg.Backend.BaseURL = os.Getenv("HF_BASE_URL")
		cfg.Backend.Model = os.Getenv("HF_MODEL")
	case BackendNebius:
		cfg.Backend.BaseURL = os.Getenv("NEBIUS_BASE_URL")
		cfg.Backend.Model = os.Getenv("NEBIUS_MODEL")
	case BackendOpenAI:
		cfg.Backend.BaseURL = os.Getenv("OPENAI_BASE_URL")
		cfg.Backend.Model = os.Getenv("OPENAI_MODEL")
	}

	if keys, ok := credentialKeys[kind]; ok {
		store := NewSecretStore(envString("SECRETS_DIR", DefaultSecretsDir))
		key, err := store.Lookup(keys...)
		if err != nil {
			return nil, fmt.Errorf("config: %s credential: %w", kind, err)
		}
		cfg.Backend.APIKey = key
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		page, err := LoadPage(path)
		if err != nil {
			return nil, err
		}
		cfg.Page = page
	}
	if title := os.Getenv("PAGE_TITLE"); title != "" {
		cfg.Page.Title = title
	}
	if url := os.Getenv("DASHBOARD_URL"); url != "" {
		cfg.Page.DashboardURL = url
	}
	cfg.Page.ShowHistory = envBool("PAGE_SHOW_HISTORY", cfg.Page.ShowHistory)

	return cfg, nil
}

// Validate reports configuration errors that must stop the process before serving.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DocumentPath) == "" {
		return fmt.Errorf("config: DOCUMENT_PATH is required")
	}
	switch c.Extractor {
	case ExtractorPDF, ExtractorPDFToText:
	default:
		return fmt.Errorf("config: unknown EXTRACTOR %q (want %s or %s)", c.Extractor, ExtractorPDF, ExtractorPDFToText)
	}
	switch c.Backend.Kind {
	case BackendLexical:
	case BackendHF, BackendNebius, BackendOpenAI:
		if strings.TrimSpace(c.Backend.APIKey) == "" {
			return fmt.Errorf("config: %s backend requires %s", c.Backend.Kind, strings.Join(credentialKeys[c.Backend.Kind], " or "))
		}
	default:
		return fmt.Errorf("config: unknown QA_BACKEND %q", c.Backend.Kind)
	}
	if c.Backend.CharBudget < 0 {
		return fmt.Errorf("config: CONTEXT_CHAR_BUDGET must be >= 0")
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("config: QA_EVENTS_ENABLED requires KAFKA_BROKERS")
	}
	return nil
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
