package extractive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hetulpatel/reportqa/internal/logging"
	"github.com/hetulpatel/reportqa/internal/qa"
)

const (
	defaultHFBaseURL = "https://api-inference.huggingface.co"
	defaultHFModel   = "distilbert-base-cased-distilled-squad"
	maxErrorBody     = 300
)

// HFConfig controls the hosted extractive backend.
type HFConfig struct {
	Token   string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// HuggingFace calls a hosted question-answering model that returns spans of the context.
type HuggingFace struct {
	client  *http.Client
	token   string
	baseURL string
	model   string
}

// NewHuggingFace creates the backend; a token is required.
func NewHuggingFace(cfg HFConfig) (*HuggingFace, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("huggingface: API token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultHFBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultHFModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HuggingFace{
		client:  &http.Client{Timeout: timeout},
		token:   token,
		baseURL: baseURL,
		model:   model,
	}, nil
}

func (h *HuggingFace) Name() string {
	return "hf"
}

type hfRequest struct {
	Inputs hfInputs `json:"inputs"`
}

type hfInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type hfAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

// Answer posts the question and context to the model endpoint.
func (h *HuggingFace) Answer(ctx context.Context, text, question string) (qa.Answer, error) {
	body, err := json.Marshal(hfRequest{Inputs: hfInputs{Question: question, Context: text}})
	if err != nil {
		return qa.Answer{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/models/"+h.model, bytes.NewReader(body))
	if err != nil {
		return qa.Answer{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		return qa.Answer{}, fmt.Errorf("calling huggingface: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return qa.Answer{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return qa.Answer{}, &qa.StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	out, err := decodeHFAnswer(raw)
	if err != nil {
		return qa.Answer{}, fmt.Errorf("decode response: %w", err)
	}

	start, end, ok := runeSpanToBytes(text, out.Start, out.End)
	if !ok || text[start:end] != out.Answer {
		logging.Debugf("[hf] answer offsets %d:%d do not match context; locating by text", out.Start, out.End)
		start = strings.Index(text, out.Answer)
		end = -1
		if start >= 0 {
			end = start + len(out.Answer)
		}
	}
	return qa.Answer{Text: out.Answer, Score: out.Score, Start: start, End: end}, nil
}

// decodeHFAnswer accepts either a single answer object or a ranked list.
func decodeHFAnswer(raw []byte) (hfAnswer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return hfAnswer{}, fmt.Errorf("empty body")
	}
	if raw[0] == '[' {
		var list []hfAnswer
		if err := json.Unmarshal(raw, &list); err != nil {
			return hfAnswer{}, err
		}
		if len(list) == 0 {
			return hfAnswer{}, fmt.Errorf("no answers returned")
		}
		return list[0], nil
	}
	var one hfAnswer
	if err := json.Unmarshal(raw, &one); err != nil {
		return hfAnswer{}, err
	}
	return one, nil
}

// runeSpanToBytes converts code point offsets, as returned by the model server, to byte offsets.
func runeSpanToBytes(text string, start, end int) (int, int, bool) {
	if start < 0 || end < start {
		return 0, 0, false
	}
	bs, be := -1, -1
	n := 0
	for i := range text {
		if n == start {
			bs = i
		}
		if n == end {
			be = i
			break
		}
		n++
	}
	if n == end && be < 0 {
		be = len(text)
	}
	if bs < 0 && start == utf8.RuneCountInString(text) {
		bs = len(text)
	}
	if bs < 0 || be < 0 {
		return 0, 0, false
	}
	return bs, be, true
}
