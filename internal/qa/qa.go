// Package qa answers questions against a fixed context through one backend
// chosen at startup.
package qa

import (
	"context"
	"fmt"
	"time"

	"github.com/hetulpatel/reportqa/internal/logging"
)

// Answer is one backend response. Score, Start and End are -1 when the
// backend does not report them.
type Answer struct {
	Text  string  `json:"answer"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// Unscored builds an Answer for backends that only return text.
func Unscored(text string) Answer {
	return Answer{Text: text, Score: -1, Start: -1, End: -1}
}

// Backend is one interchangeable question-answering implementation.
type Backend interface {
	Name() string
	Answer(ctx context.Context, text, question string) (Answer, error)
}

// Answerer forwards each question to its backend exactly once.
type Answerer struct {
	backend Backend
	timeout time.Duration
}

// Option customizes an Answerer.
type Option func(*Answerer)

// WithTimeout bounds each backend call. Zero leaves the backend's own client timeout in charge.
func WithTimeout(d time.Duration) Option {
	return func(a *Answerer) {
		a.timeout = d
	}
}

// New creates an Answerer bound to backend for its whole lifetime.
func New(backend Backend, opts ...Option) (*Answerer, error) {
	if backend == nil {
		return nil, fmt.Errorf("qa: backend is required")
	}
	a := &Answerer{backend: backend}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Backend returns the name of the configured backend.
func (a *Answerer) Backend() string {
	return a.backend.Name()
}

// Ask answers question against text. Empty text is still forwarded.
// Every failure, including a backend panic, comes back as *AnswerError.
func (a *Answerer) Ask(ctx context.Context, text, question string) (ans Answer, err error) {
	name := a.backend.Name()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("[qa] backend %s panicked: %v", name, r)
			ans = Answer{}
			err = &AnswerError{Backend: name, Err: fmt.Errorf("backend panic: %v", r)}
		}
	}()

	start := time.Now()
	ans, err = a.backend.Answer(ctx, text, question)
	if err != nil {
		logging.Errorf("[qa] backend=%s failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
		return Answer{}, &AnswerError{Backend: name, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Answer{}, &AnswerError{Backend: name, Err: ctxErr}
	}
	logging.Debugf("[qa] backend=%s answered in %s (score=%.3f)", name, time.Since(start).Round(time.Millisecond), ans.Score)
	return ans, nil
}
