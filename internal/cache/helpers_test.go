package cache

import (
	"context"
	"os"
)

type fakeExtractor struct {
	text  string
	calls int
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) Extract(ctx context.Context, path string) (string, int, error) {
	f.calls++
	return f.text, 1, nil
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o600)
}
