package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hetulpatel/reportqa/internal/kafka"
	"github.com/hetulpatel/reportqa/internal/logging"
	"github.com/hetulpatel/reportqa/internal/queue"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	brokers := brokersFromEnv()
	topic := envString("QA_EVENTS_TOPIC", kafka.DefaultAnswersTopic)
	group := os.Getenv("QA_EVENTS_GROUP")

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[qa-events] wait for broker: %v", err)
	}
	cancel()

	reader := kafka.NewReader(brokers, topic, group)
	defer reader.Close()

	logging.Infof("[qa-events] tailing %s", topic)
	err := queue.ConsumeAnswers(ctx, reader, func(ev queue.AnswerEvent) error {
		if ev.Error != "" {
			fmt.Printf("%s [%s] %q -> error: %s\n", ev.AskedAt.Format(time.RFC3339), ev.Backend, ev.Question, ev.Error)
			return nil
		}
		fmt.Printf("%s [%s] %q -> %q (score=%.2f, %dms)\n", ev.AskedAt.Format(time.RFC3339), ev.Backend, ev.Question, ev.Answer, ev.Score, ev.LatencyMS)
		return nil
	})
	if err != nil {
		logging.Fatalf("[qa-events] %v", err)
	}
}

func brokersFromEnv() []string {
	raw := envString("KAFKA_BROKERS", "localhost:9092")
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
