// Package document turns the configured report file into immutable text.
package document

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hetulpatel/reportqa/internal/hashutil"
	"github.com/hetulpatel/reportqa/internal/logging"
)

// Document is the extracted report. It is never mutated after Load returns.
type Document struct {
	Path     string
	Name     string
	Text     string
	Pages    int
	Hash     string
	LoadedAt time.Time
}

// Extractor reads the plain text of a page-oriented document.
type Extractor interface {
	Name() string
	// Extract returns the page texts joined by newlines and the page count.
	Extract(ctx context.Context, path string) (string, int, error)
}

// TextCache stores extracted text keyed by file content hash.
type TextCache interface {
	Get(ctx context.Context, key string) (*CachedText, bool, error)
	Set(ctx context.Context, key string, value CachedText) error
}

// CachedText is what a TextCache keeps for one file version.
type CachedText struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

// LoadError reports that a document could not be turned into text.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load extracts path with ext. A nil Document is always paired with a *LoadError;
// an empty or image-only file yields a Document with empty Text.
func Load(ctx context.Context, ext Extractor, cache TextCache, path string) (*Document, error) {
	if ext == nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("extractor is nil")}
	}
	if path == "" {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("document path is empty")}
	}

	hash, err := hashutil.HashFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	key := ext.Name() + ":" + hash

	doc := &Document{
		Path: path,
		Name: filepath.Base(path),
		Hash: hash,
	}

	if cache != nil {
		cached, ok, err := cache.Get(ctx, key)
		if err != nil {
			logging.Warnf("[document] cache get %s: %v", doc.Name, err)
		} else if ok {
			logging.Debugf("[document] cache hit for %s (%s)", doc.Name, hash[:12])
			doc.Text = cached.Text
			doc.Pages = cached.Pages
			doc.LoadedAt = time.Now().UTC()
			return doc, nil
		}
	}

	text, pages, err := ext.Extract(ctx, path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	doc.Text = text
	doc.Pages = pages
	doc.LoadedAt = time.Now().UTC()

	if cache != nil {
		if err := cache.Set(ctx, key, CachedText{Text: text, Pages: pages}); err != nil {
			logging.Warnf("[document] cache set %s: %v", doc.Name, err)
		}
	}
	return doc, nil
}
