package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/hetulpatel/reportqa/internal/storage/sqlite"
)

func main() {
	_ = godotenv.Load()

	clearAll := flag.Bool("clear", false, "delete every recorded question")
	recent := flag.Int("recent", 0, "print the N most recent questions")
	flag.Parse()

	store, err := sqlite.Open(os.Getenv("SQLITE_PATH"))
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateTables(ctx); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	if *clearAll {
		if err := store.ClearTables(ctx); err != nil {
			log.Fatalf("clear tables: %v", err)
		}
		log.Printf("Question history cleared at %s", store.Path())
	}

	if *recent > 0 {
		entries, err := store.Recent(ctx, *recent)
		if err != nil {
			log.Fatalf("recent: %v", err)
		}
		for _, e := range entries {
			outcome := e.Answer
			if e.Error != "" {
				outcome = "error: " + e.Error
			}
			fmt.Printf("%s  %-8s %q -> %q\n", e.AskedAt.Format("2006-01-02 15:04:05"), e.Backend, e.Question, outcome)
		}
	}

	n, err := store.Count(ctx)
	if err != nil {
		log.Fatalf("count: %v", err)
	}
	log.Printf("%d questions recorded in %s", n, store.Path())
}
