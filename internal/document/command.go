package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultCommandTimeout = 25 * time.Second

// CommandExtractor converts a local PDF to text via the pdftotext CLI.
type CommandExtractor struct {
	binary  string
	timeout time.Duration
}

// NewCommandExtractor returns an extractor using the pdftotext CLI.
func NewCommandExtractor(bin string) *CommandExtractor {
	if bin == "" {
		bin = os.Getenv("PDFTOTEXT_BIN")
	}
	if bin == "" {
		bin = "pdftotext"
	}
	return &CommandExtractor{
		binary:  bin,
		timeout: defaultCommandTimeout,
	}
}

func (e *CommandExtractor) Name() string {
	return "pdftotext"
}

// Extract runs pdftotext on path and rejoins its form-feed separated pages with newlines.
func (e *CommandExtractor) Extract(ctx context.Context, path string) (string, int, error) {
	if e == nil {
		return "", 0, fmt.Errorf("pdf extractor is nil")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, err
	}
	if info.IsDir() {
		return "", 0, fmt.Errorf("%s is a directory", path)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, e.binary, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", 0, fmt.Errorf("pdftotext failed: %w: %s", err, msg)
		}
		return "", 0, fmt.Errorf("pdftotext failed: %w", err)
	}

	pages := splitPages(stdout.String())
	return strings.Join(pages, "\n"), len(pages), nil
}

// splitPages splits pdftotext output, which terminates every page with a form feed.
func splitPages(out string) []string {
	out = strings.TrimSuffix(out, "\f")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\f")
}
