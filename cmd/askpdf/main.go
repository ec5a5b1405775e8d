package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hetulpatel/reportqa/internal/backends"
	"github.com/hetulpatel/reportqa/internal/cache"
	"github.com/hetulpatel/reportqa/internal/config"
	"github.com/hetulpatel/reportqa/internal/document"
	"github.com/hetulpatel/reportqa/internal/logging"
	"github.com/hetulpatel/reportqa/internal/qa"
)

func main() {
	pdfPath := flag.String("pdf", "", "PDF to read (default DOCUMENT_PATH)")
	question := flag.String("q", "", "question to ask")
	backend := flag.String("backend", "", "lexical|hf|nebius|openai (default QA_BACKEND)")
	asJSON := flag.Bool("json", false, "print the answer as JSON")
	dumpText := flag.Bool("text", false, "print the extracted text and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Flags win over the environment; set them before config resolves credentials.
	if *pdfPath != "" {
		os.Setenv("DOCUMENT_PATH", *pdfPath)
	}
	if *backend != "" {
		os.Setenv("QA_BACKEND", *backend)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("[askpdf] %v", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[askpdf] %v", err)
	}

	extractor, err := backends.NewExtractor(cfg)
	if err != nil {
		logging.Fatalf("[askpdf] %v", err)
	}
	var textCache document.TextCache
	if cfg.Redis.Addr != "" {
		c, err := cache.NewRedisTextCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, cfg.Redis.Prefix)
		if err != nil {
			logging.Fatalf("[askpdf] redis cache: %v", err)
		}
		defer c.Close()
		textCache = c
	}

	doc, err := document.Load(ctx, extractor, textCache, cfg.DocumentPath)
	if err != nil {
		logging.Fatalf("[askpdf] %v", err)
	}
	if *dumpText {
		fmt.Println(doc.Text)
		return
	}

	q := strings.TrimSpace(*question)
	if q == "" {
		q = strings.TrimSpace(strings.Join(flag.Args(), " "))
	}
	if q == "" {
		fmt.Fprintln(os.Stderr, "usage: askpdf [-pdf report.pdf] [-backend lexical] -q \"question\"")
		os.Exit(2)
	}

	answerer, err := backends.NewAnswerer(cfg.Backend)
	if err != nil {
		logging.Fatalf("[askpdf] backend: %v", err)
	}

	start := time.Now()
	ans, err := answerer.Ask(ctx, doc.Text, q)
	if err != nil {
		logging.Debugf("[askpdf] %v", err)
		fmt.Fprintf(os.Stderr, "error: %s\n", qa.Diagnose(err))
		os.Exit(1)
	}
	logging.Debugf("[askpdf] %s answered in %v", answerer.Backend(), time.Since(start))

	if *asJSON {
		out := map[string]any{
			"question": q,
			"answer":   ans.Text,
			"score":    ans.Score,
			"start":    ans.Start,
			"end":      ans.End,
			"backend":  answerer.Backend(),
			"document": doc.Name,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logging.Fatalf("[askpdf] encode: %v", err)
		}
		return
	}
	if ans.Text == "" {
		fmt.Println("(no answer found in the report)")
		return
	}
	fmt.Println(ans.Text)
}
