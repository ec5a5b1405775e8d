// Package server exposes the report page and the question API over HTTP.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hetulpatel/reportqa/internal/config"
	"github.com/hetulpatel/reportqa/internal/document"
	"github.com/hetulpatel/reportqa/internal/logging"
	"github.com/hetulpatel/reportqa/internal/qa"
	"github.com/hetulpatel/reportqa/internal/queue"
	"github.com/hetulpatel/reportqa/internal/storage/sqlite"
)

//go:embed templates/*.html
var templatesFS embed.FS

const maxQuestionBytes = 4 << 10

// History is the question log used by the page and the export route.
type History interface {
	Record(ctx context.Context, e sqlite.Entry) (sqlite.Entry, error)
	Recent(ctx context.Context, limit int) ([]sqlite.Entry, error)
	ExportXLSX(ctx context.Context, w io.Writer) (int, error)
}

// Events receives one event per answered question.
type Events interface {
	Publish(ctx context.Context, ev queue.AnswerEvent)
}

// Options wires the server. Document is nil when loading failed, in which case LoadErr explains why.
type Options struct {
	Addr     string
	Page     config.PageConfig
	Document *document.Document
	LoadErr  error
	Answerer *qa.Answerer
	History  History
	Events   Events
}

// Server serves the page and API. Document text is read-only after construction.
type Server struct {
	addr      string
	page      config.PageConfig
	doc       *document.Document
	loadErr   error
	answerer  *qa.Answerer
	history   History
	events    Events
	templates *template.Template

	// publishing tracks event sends that outlive their request.
	publishing sync.WaitGroup
}

// New validates opts and parses the embedded templates.
func New(opts Options) (*Server, error) {
	if opts.Answerer == nil {
		return nil, fmt.Errorf("server: answerer is required")
	}
	if opts.Document == nil && opts.LoadErr == nil {
		opts.LoadErr = errors.New("no document loaded")
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("server: parse templates: %w", err)
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8501"
	}
	return &Server{
		addr:      addr,
		page:      opts.Page,
		doc:       opts.Document,
		loadErr:   opts.LoadErr,
		answerer:  opts.Answerer,
		history:   opts.History,
		events:    opts.Events,
		templates: tmpl,
	}, nil
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /download/history.xlsx", s.handleHistoryExport)
	mux.HandleFunc("GET /download/{name}", s.handleDownload)
	return loggingMiddleware(mux)
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
	}

	logging.Infof("[server] listening on %s", s.addr)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	s.WaitEvents()
	return nil
}

// WaitEvents blocks until every queued answer event has been handed to Events.
func (s *Server) WaitEvents() {
	s.publishing.Wait()
}

type askResult struct {
	ID      string
	Answer  qa.Answer
	Message string
	Status  int
}

var errEmptyQuestion = errors.New("question is empty")

// ask answers one question against the loaded document, then records and publishes the outcome.
func (s *Server) ask(ctx context.Context, question string) askResult {
	question = strings.TrimSpace(question)
	if question == "" {
		return askResult{Message: errEmptyQuestion.Error(), Status: http.StatusBadRequest}
	}
	if s.doc == nil {
		return askResult{Message: "the report could not be loaded", Status: http.StatusServiceUnavailable}
	}

	res := askResult{ID: uuid.NewString(), Status: http.StatusOK}
	start := time.Now()
	ans, err := s.answerer.Ask(ctx, s.doc.Text, question)
	latency := time.Since(start)
	if err != nil {
		res.Message = qa.Diagnose(err)
		res.Status = http.StatusBadGateway
		ans = qa.Unscored("")
	}
	res.Answer = ans

	entry := sqlite.Entry{
		ID:           res.ID,
		AskedAt:      start,
		Backend:      s.answerer.Backend(),
		DocumentHash: s.doc.Hash,
		Question:     question,
		Answer:       ans.Text,
		Score:        ans.Score,
		Error:        res.Message,
		LatencyMS:    latency.Milliseconds(),
	}
	if s.history != nil {
		if _, err := s.history.Record(context.WithoutCancel(ctx), entry); err != nil {
			logging.Warnf("[server] record question %s: %v", res.ID, err)
		}
	}
	if s.events != nil {
		ev := queue.AnswerEvent{
			ID:           entry.ID,
			AskedAt:      entry.AskedAt.UTC(),
			Backend:      entry.Backend,
			Document:     s.doc.Name,
			DocumentHash: entry.DocumentHash,
			Question:     entry.Question,
			Answer:       entry.Answer,
			Score:        entry.Score,
			Error:        entry.Error,
			LatencyMS:    entry.LatencyMS,
		}
		// A slow broker must not delay the answer.
		pubCtx := context.WithoutCancel(ctx)
		s.publishing.Add(1)
		go func() {
			defer s.publishing.Done()
			s.events.Publish(pubCtx, ev)
		}()
	}
	return res
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	ID      string  `json:"id,omitempty"`
	Answer  string  `json:"answer"`
	Score   float64 `json:"score"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Backend string  `json:"backend"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a question field")
		return
	}
	res := s.ask(r.Context(), req.Question)
	if res.Message != "" {
		writeError(w, res.Status, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		ID:      res.ID,
		Answer:  res.Answer.Text,
		Score:   res.Answer.Score,
		Start:   res.Answer.Start,
		End:     res.Answer.End,
		Backend: s.answerer.Backend(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "question history is not enabled")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		logging.Errorf("[server] history: %v", err)
		writeError(w, http.StatusInternalServerError, "could not read question history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="history.xlsx"`)
	if _, err := s.history.ExportXLSX(r.Context(), w); err != nil {
		logging.Errorf("[server] export history: %v", err)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	d, ok := s.page.Download(r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(d.Path)
	if err != nil {
		logging.Warnf("[server] download %s: %v", d.Name, err)
		http.Error(w, d.Name+" not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, d.Name+" not found", http.StatusNotFound)
		return
	}
	if d.MIME != "" {
		w.Header().Set("Content-Type", d.MIME)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Name))
	http.ServeContent(w, r, d.Name, info.ModTime(), f)
}

type healthResponse struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Document string `json:"document,omitempty"`
	Pages    int    `json:"pages"`
	Chars    int    `json:"chars"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Backend: s.answerer.Backend()}
	if s.doc != nil {
		resp.Document = s.doc.Name
		resp.Pages = s.doc.Pages
		resp.Chars = len([]rune(s.doc.Text))
	} else {
		resp.Status = "degraded"
		resp.Error = s.loadErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debugf("[server] %s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
