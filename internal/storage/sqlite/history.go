package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout has a fixed width so asked_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one answered (or failed) question.
type Entry struct {
	ID           string    `json:"id"`
	AskedAt      time.Time `json:"asked_at"`
	Backend      string    `json:"backend"`
	DocumentHash string    `json:"document_hash,omitempty"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer,omitempty"`
	Score        float64   `json:"score"`
	Error        string    `json:"error,omitempty"`
	LatencyMS    int64     `json:"latency_ms"`
}

type entryRow struct {
	ID           string  `db:"id"`
	AskedAt      string  `db:"asked_at"`
	Backend      string  `db:"backend"`
	DocumentHash string  `db:"document_hash"`
	Question     string  `db:"question"`
	Answer       string  `db:"answer"`
	Score        float64 `db:"score"`
	Error        string  `db:"error"`
	LatencyMS    int64   `db:"latency_ms"`
}

func (r entryRow) entry() Entry {
	asked, _ := time.Parse(timeLayout, r.AskedAt)
	return Entry{
		ID:           r.ID,
		AskedAt:      asked,
		Backend:      r.Backend,
		DocumentHash: r.DocumentHash,
		Question:     r.Question,
		Answer:       r.Answer,
		Score:        r.Score,
		Error:        r.Error,
		LatencyMS:    r.LatencyMS,
	}
}

// Record stores e, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if s == nil || s.db == nil {
		return e, fmt.Errorf("sqlite store not initialized")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.AskedAt.IsZero() {
		e.AskedAt = time.Now()
	}
	e.AskedAt = e.AskedAt.UTC()

	row := entryRow{
		ID:           e.ID,
		AskedAt:      e.AskedAt.Format(timeLayout),
		Backend:      e.Backend,
		DocumentHash: e.DocumentHash,
		Question:     e.Question,
		Answer:       e.Answer,
		Score:        e.Score,
		Error:        e.Error,
		LatencyMS:    e.LatencyMS,
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO questions (id, asked_at, backend, document_hash, question, answer, score, error, latency_ms)
VALUES (:id, :asked_at, :backend, :document_hash, :question, :answer, :score, :error, :latency_ms)
`, row)
	if err != nil {
		return e, fmt.Errorf("insert question: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. A non-positive limit returns all entries.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store not initialized")
	}
	if limit <= 0 {
		limit = -1
	}
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows, `
SELECT id, asked_at, backend, COALESCE(document_hash, '') AS document_hash, question,
	COALESCE(answer, '') AS answer, COALESCE(score, 0) AS score,
	COALESCE(error, '') AS error, COALESCE(latency_ms, 0) AS latency_ms
FROM questions
ORDER BY asked_at DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

// Count returns the number of recorded questions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM questions`); err != nil {
		return 0, err
	}
	return n, nil
}
