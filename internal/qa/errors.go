package qa

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// AnswerError reports that a single question could not be answered.
type AnswerError struct {
	Backend string
	Err     error
}

func (e *AnswerError) Error() string {
	return oneLine(fmt.Sprintf("%s backend: %v", e.Backend, e.Err))
}

func (e *AnswerError) Unwrap() error {
	return e.Err
}

// StatusError is returned by HTTP-based backends for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// patterns maps error text to short user-facing diagnostics, checked in order.
var patterns = []struct {
	needle string
	msg    string
}{
	{"rate limit", "rate limit exceeded, try again shortly"},
	{"status 429", "rate limit exceeded, try again shortly"},
	{"quota", "quota exceeded"},
	{"invalid api", "authentication failed with the answering service"},
	{"incorrect api key", "authentication failed with the answering service"},
	{"unauthorized", "authentication failed with the answering service"},
	{"status 401", "authentication failed with the answering service"},
	{"forbidden", "access denied by the answering service"},
	{"status 403", "access denied by the answering service"},
	{"status 503", "the answering service is loading or unavailable"},
	{"decode", "the answering service returned a malformed response"},
	{"unmarshal", "the answering service returned a malformed response"},
}

// Diagnose renders err as a one-line message safe to show to the user.
func Diagnose(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the answering service timed out"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "the answering service timed out"
		}
		return "the answering service is unreachable"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "the answering service is unreachable"
	}

	lower := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(lower, p.needle) {
			return p.msg
		}
	}
	var ae *AnswerError
	if errors.As(err, &ae) {
		return fmt.Sprintf("the %s backend could not answer: %s", ae.Backend, shorten(oneLine(ae.Err.Error()), 160))
	}
	return shorten(oneLine(err.Error()), 160)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func shorten(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
