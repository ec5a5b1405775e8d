package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/reportqa/internal/backends"
	"github.com/hetulpatel/reportqa/internal/cache"
	"github.com/hetulpatel/reportqa/internal/config"
	"github.com/hetulpatel/reportqa/internal/document"
	"github.com/hetulpatel/reportqa/internal/kafka"
	"github.com/hetulpatel/reportqa/internal/logging"
	"github.com/hetulpatel/reportqa/internal/queue"
	"github.com/hetulpatel/reportqa/internal/server"
	sqlstore "github.com/hetulpatel/reportqa/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("[reportqa] %v", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[reportqa] %v", err)
	}

	answerer, err := backends.NewAnswerer(cfg.Backend)
	if err != nil {
		logging.Fatalf("[reportqa] backend: %v", err)
	}
	extractor, err := backends.NewExtractor(cfg)
	if err != nil {
		logging.Fatalf("[reportqa] extractor: %v", err)
	}

	textCache := mustTextCache(ctx, cfg.Redis)
	if textCache != nil {
		defer textCache.Close()
	}

	doc, loadErr := document.Load(ctx, extractor, textCache, cfg.DocumentPath)
	if loadErr != nil {
		logging.Errorf("[reportqa] %v", loadErr)
	} else {
		logging.Infof("[reportqa] loaded %s (%d pages, %d chars) via %s", doc.Name, doc.Pages, len([]rune(doc.Text)), extractor.Name())
	}

	opts := server.Options{
		Addr:     cfg.HTTPAddr,
		Page:     cfg.Page,
		Document: doc,
		LoadErr:  loadErr,
		Answerer: answerer,
	}

	if cfg.SQLitePath != "" {
		store := mustHistory(ctx, cfg.SQLitePath)
		defer store.Close()
		opts.History = store
	}

	if cfg.Events.Enabled {
		publisher := mustPublisher(ctx, cfg.Events)
		defer publisher.Close()
		opts.Events = publisher
	}

	srv, err := server.New(opts)
	if err != nil {
		logging.Fatalf("[reportqa] %v", err)
	}
	logging.Infof("[reportqa] answering with %s backend", answerer.Backend())
	if err := srv.Start(ctx); err != nil {
		logging.Fatalf("[reportqa] serve: %v", err)
	}
}

func mustTextCache(ctx context.Context, cfg config.RedisConfig) cache.TextCache {
	if cfg.Addr == "" {
		return nil
	}
	c, err := cache.NewRedisTextCache(cfg.Addr, cfg.Password, cfg.DB, cfg.TTL, cfg.Prefix)
	if err != nil {
		logging.Fatalf("[reportqa] redis cache: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		logging.Warnf("[reportqa] redis %s unreachable, extracting without cache: %v", cfg.Addr, err)
		c.Close()
		return nil
	}
	return c
}

func mustHistory(ctx context.Context, path string) *sqlstore.Store {
	store, err := sqlstore.Open(path)
	if err != nil {
		logging.Fatalf("[reportqa] open sqlite: %v", err)
	}
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[reportqa] create tables: %v", err)
	}
	logging.Infof("[reportqa] recording questions in %s", store.Path())
	return store
}

func mustPublisher(ctx context.Context, cfg config.EventsConfig) *queue.Publisher {
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, cfg.Brokers); err != nil {
		logging.Fatalf("[reportqa] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, cfg.Brokers, cfg.Topic); err != nil {
		logging.Errorf("[reportqa] ensure topic warning: %v", err)
	}
	cancelEnsure()

	logging.Infof("[reportqa] publishing answers to %s", cfg.Topic)
	return queue.NewPublisher(kafka.NewWriter(cfg.Brokers, cfg.Topic), 5*time.Second)
}
