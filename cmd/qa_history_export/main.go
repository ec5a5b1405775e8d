package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/hetulpatel/reportqa/internal/storage/sqlite"
)

func main() {
	_ = godotenv.Load()

	out := flag.String("out", "history.xlsx", "workbook to write")
	flag.Parse()

	path := os.Getenv("SQLITE_PATH")
	store, err := sqlite.Open(path)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateTables(ctx); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("ensure output dir: %v", err)
		}
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create %s: %v", *out, err)
	}
	n, err := store.ExportXLSX(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	log.Printf("Exported %d questions from %s to %s", n, store.Path(), *out)
}
