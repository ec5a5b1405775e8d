package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/reportqa/internal/logging"
)

// AnswerEvent describes one question and its outcome.
type AnswerEvent struct {
	ID           string    `json:"id"`
	AskedAt      time.Time `json:"asked_at"`
	Backend      string    `json:"backend"`
	Document     string    `json:"document"`
	DocumentHash string    `json:"document_hash,omitempty"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer,omitempty"`
	Score        float64   `json:"score"`
	Error        string    `json:"error,omitempty"`
	LatencyMS    int64     `json:"latency_ms"`
}

// MessageWriter is the subset of *kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the subset of *kafka.Reader used for consuming.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Publisher writes answer events. A nil *Publisher is a no-op.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewPublisher wraps writer. Each publish is bounded by timeout (default 5s).
func NewPublisher(writer MessageWriter, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{writer: writer, timeout: timeout}
}

// PublishAnswer writes ev keyed by its ID.
func PublishAnswer(ctx context.Context, writer MessageWriter, ev AnswerEvent) error {
	if writer == nil {
		return nil
	}
	if ev.ID == "" {
		return fmt.Errorf("answer event has no id")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal answer event %s: %w", ev.ID, err)
	}
	return writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.ID), Value: payload})
}

// Publish sends ev and logs failures; the caller's answer never depends on it.
func (p *Publisher) Publish(ctx context.Context, ev AnswerEvent) {
	if p == nil || p.writer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := PublishAnswer(ctx, p.writer, ev); err != nil {
		logging.Warnf("[queue] publish answer %s: %v", ev.ID, err)
		return
	}
	logging.Debugf("[queue] published answer %s", ev.ID)
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ConsumeAnswers reads events until ctx ends or the reader is closed. Undecodable
// messages are logged and skipped.
func ConsumeAnswers(ctx context.Context, reader MessageReader, handle func(AnswerEvent) error) error {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read answer event: %w", err)
		}
		var ev AnswerEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logging.Warnf("[queue] skip offset %d: %v", msg.Offset, err)
			continue
		}
		if err := handle(ev); err != nil {
			return err
		}
	}
}
