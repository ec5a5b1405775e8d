package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/reportqa/internal/config"
	"github.com/hetulpatel/reportqa/internal/document"
	"github.com/hetulpatel/reportqa/internal/extractive"
	"github.com/hetulpatel/reportqa/internal/qa"
	"github.com/hetulpatel/reportqa/internal/queue"
	"github.com/hetulpatel/reportqa/internal/storage/sqlite"
)

const reportText = "Quarterly inventory review.\nThe warehouse restocks every Tuesday. Safety stock is 40 units."

type failingBackend struct{ err error }

func (f failingBackend) Name() string { return "flaky" }

func (f failingBackend) Answer(ctx context.Context, text, question string) (qa.Answer, error) {
	return qa.Answer{}, f.err
}

type recordedEvents struct {
	mu  sync.Mutex
	evs []queue.AnswerEvent
}

func (r *recordedEvents) Publish(ctx context.Context, ev queue.AnswerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recordedEvents) snapshot() []queue.AnswerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.AnswerEvent(nil), r.evs...)
}

type fixture struct {
	server  *Server
	srv     *httptest.Server
	history *sqlite.Store
	events  *recordedEvents
	dir     string
}

func newFixture(t *testing.T, backend qa.Backend, doc *document.Document, loadErr error) *fixture {
	t.Helper()
	return newFixtureWithPage(t, backend, doc, loadErr, nil)
}

func newFixtureWithPage(t *testing.T, backend qa.Backend, doc *document.Document, loadErr error, adjust func(*config.PageConfig)) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.CreateTables(context.Background()))

	report := filepath.Join(dir, "my_report.pdf")
	require.NoError(t, os.WriteFile(report, []byte("%PDF-1.4 test"), 0o600))

	page := config.DefaultPage()
	page.Downloads = []config.Download{
		{Label: "Download Report", Name: "my_report.pdf", Path: report, MIME: "application/pdf"},
		{Label: "Download Dataset", Name: "my_data.csv", Path: filepath.Join(dir, "my_data.csv"), MIME: "text/csv"},
	}
	if adjust != nil {
		adjust(&page)
	}

	answerer, err := qa.New(backend)
	require.NoError(t, err)
	events := &recordedEvents{}

	s, err := New(Options{
		Page:     page,
		Document: doc,
		LoadErr:  loadErr,
		Answerer: answerer,
		History:  store,
		Events:   events,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{server: s, srv: srv, history: store, events: events, dir: dir}
}

func loadedDoc() *document.Document {
	return &document.Document{Name: "my_report.pdf", Text: reportText, Pages: 1, Hash: "abc123"}
}

func postAsk(t *testing.T, f *fixture, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/ask", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestAskReturnsAnswer(t *testing.T) {
	f := newFixture(t, extractive.NewLexical(), loadedDoc(), nil)

	resp, out := postAsk(t, f, `{"question":"When does the warehouse restock?"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out["answer"], "Tuesday")
	assert.Equal(t, "lexical", out["backend"])

	entries, err := f.history.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "When does the warehouse restock?", entries[0].Question)
	assert.Equal(t, "abc123", entries[0].DocumentHash)

	f.server.WaitEvents()
	evs := f.events.snapshot()
	require.Len(t, evs, 1)
	assert.Equal(t, entries[0].ID, evs[0].ID)
	assert.Equal(t, "my_report.pdf", evs[0].Document)
}

type blockingEvents struct {
	release chan struct{}
	done    chan queue.AnswerEvent
}

func (b *blockingEvents) Publish(ctx context.Context, ev queue.AnswerEvent) {
	<-b.release
	b.done <- ev
}

func TestAskDoesNotWaitForEventPublishing(t *testing.T) {
	answerer, err := qa.New(extractive.NewLexical())
	require.NoError(t, err)
	events := &blockingEvents{release: make(chan struct{}), done: make(chan queue.AnswerEvent, 1)}
	s, err := New(Options{Page: config.DefaultPage(), Document: loadedDoc(), Answerer: answerer, Events: events})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/ask", "application/json", strings.NewReader(`{"question":"When does the warehouse restock?"}`))
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Tuesday")

	close(events.release)
	s.WaitEvents()
	ev := <-events.done
	assert.Equal(t, "When does the warehouse restock?", ev.Question)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	f := newFixture(t, extractive.NewLexical(), loadedDoc(), nil)

	resp, out := postAsk(t, f, `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, out["error"])

	resp, _ = postAsk(t, f, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	n, err := f.history.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAskWithoutDocument(t *testing.T) {
	loadErr := &document.LoadError{Path: "my_report.pdf", Err: os.ErrNotExist}
	f := newFixture(t, extractive.NewLexical(), nil, loadErr)

	resp, out := postAsk(t, f, `{"question":"When?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "the report could not be loaded", out["error"])

	hresp, err := http.Get(f.srv.URL + "/api/health")
	require.NoError(t, err)
	defer hresp.Body.Close()
	var health healthResponse
	require.NoError(t, json.NewDecoder(hresp.Body).Decode(&health))
	assert.Equal(t, "degraded", health.Status)
	assert.Contains(t, health.Error, "my_report.pdf")
}

func TestAskBackendFailureStaysUsable(t *testing.T) {
	f := newFixture(t, failingBackend{err: errors.New("status 429: rate limit exceeded")}, loadedDoc(), nil)

	for i := 0; i < 2; i++ {
		resp, out := postAsk(t, f, `{"question":"When does the warehouse restock?"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		msg, _ := out["error"].(string)
		assert.NotEmpty(t, msg)
		assert.NotContains(t, msg, "\n")
	}

	entries, err := f.history.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].Error)
}

func TestIndexPageForm(t *testing.T) {
	f := newFixture(t, extractive.NewLexical(), loadedDoc(), nil)

	resp, err := http.Get(f.srv.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "AI-Driven Stockout Risk Optimization Chatbot")
	assert.Contains(t, body, `href="/download/my_report.pdf"`)
	assert.Contains(t, body, "my_data.csv not found.")
	assert.Contains(t, body, "View Dataset on Kaggle")

	resp, err = http.PostForm(f.srv.URL+"/", url.Values{"question": {"When does the warehouse restock?"}})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `class="success"`)
	assert.Contains(t, body, "Tuesday")
}

func TestIndexPageHidesHistoryByDefault(t *testing.T) {
	f := newFixture(t, extractive.NewLexical(), loadedDoc(), nil)
	postAsk(t, f, `{"question":"A private question about safety stock?"}`)

	resp, err := http.Get(f.srv.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.NotContains(t, body, "Recent questions")
	assert.NotContains(t, body, "A private question about safety stock?")
	assert.NotContains(t, body, "/download/history.xlsx")
}

func TestIndexPageShowsHistoryWhenEnabled(t *testing.T) {
	f := newFixtureWithPage(t, extractive.NewLexical(), loadedDoc(), nil, func(p *config.PageConfig) {
		p.ShowHistory = true
	})
	postAsk(t, f, `{"question":"How much safety stock?"}`)

	resp, err := http.Get(f.srv.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, "Recent questions")
	assert.Contains(t, body, "How much safety stock?")
	assert.Contains(t, body, "/download/history.xlsx")
}

func TestIndexPageShowsBackendError(t *testing.T) {
	f := newFixture(t, failingBackend{err: errors.New("dial tcp: connection refused")}, loadedDoc(), nil)

	resp, err := http.PostForm(f.srv.URL+"/", url.Values{"question": {"anything"}})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, `class="error"`)
	assert.Contains(t, body, "Model error")
}

func TestIndexPageWarnsWhenDocumentMissing(t *testing.T) {
	f := newFixture(t, extractive.NewLexical(), nil, &document.LoadError{Path: "my_report.pdf", Err: os.ErrNotExist})

	resp, err := http.Get(f.srv.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, "PDF could not be loaded")
	assert.NotContains(t, body, `name="question"`)
}

func TestDownloads(t *testing.T) {
	f := newFixture(t, extractive.NewLexical(), loadedDoc(), nil)

	resp, err := http.Get(f.srv.URL + "/download/my_report.pdf")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "my_report.pdf")
	assert.Equal(t, "%PDF-1.4 test", body)

	resp, err = http.Get(f.srv.URL + "/download/my_data.csv")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/download/secrets.env")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryRoutes(t *testing.T) {
	f := newFixture(t, extractive.NewLexical(), loadedDoc(), nil)
	postAsk(t, f, `{"question":"How much safety stock?"}`)

	resp, err := http.Get(f.srv.URL + "/api/history?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	var entries []sqlite.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "How much safety stock?", entries[0].Question)

	resp, err = http.Get(f.srv.URL + "/api/history?limit=zero")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/download/history.xlsx")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body, "PK"), "xlsx is a zip container")
}

func TestHealth(t *testing.T) {
	f := newFixture(t, extractive.NewLexical(), loadedDoc(), nil)

	resp, err := http.Get(f.srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "lexical", health.Backend)
	assert.Equal(t, 1, health.Pages)
}

func TestNewRequiresAnswerer(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
