package server

import (
	"net/http"
	"os"

	"github.com/hetulpatel/reportqa/internal/config"
	"github.com/hetulpatel/reportqa/internal/logging"
	"github.com/hetulpatel/reportqa/internal/storage/sqlite"
)

type downloadView struct {
	config.Download
	Available bool
}

type pageView struct {
	Title          string
	DashboardURL   string
	Downloads      []downloadView
	Links          []config.Link
	HistoryEnabled bool
	History        []sqlite.Entry

	LoadError    string
	DocumentName string
	Pages        int

	Question string
	Answered bool
	Answer   string
	Score    float64
	Backend  string
	Error    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := pageView{
		Title:          s.page.Title,
		DashboardURL:   s.page.DashboardURL,
		Links:          s.page.Links,
		HistoryEnabled: s.history != nil && s.page.ShowHistory,
		Backend:        s.answerer.Backend(),
	}
	for _, d := range s.page.Downloads {
		info, err := os.Stat(d.Path)
		view.Downloads = append(view.Downloads, downloadView{Download: d, Available: err == nil && !info.IsDir()})
	}
	if s.doc == nil {
		view.LoadError = s.loadErr.Error()
	} else {
		view.DocumentName = s.doc.Name
		view.Pages = s.doc.Pages
	}

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxQuestionBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		view.Question = r.PostFormValue("question")
		// An empty submission just re-renders the page, as before any question was asked.
		if s.doc != nil && view.Question != "" {
			res := s.ask(r.Context(), view.Question)
			view.Answered = true
			view.Answer = res.Answer.Text
			view.Score = res.Answer.Score
			view.Error = res.Message
			if res.Message == errEmptyQuestion.Error() {
				view.Answered = false
				view.Error = ""
			}
		}
	}

	if s.history != nil && s.page.ShowHistory {
		entries, err := s.history.Recent(r.Context(), 10)
		if err != nil {
			logging.Warnf("[server] recent history: %v", err)
		}
		view.History = entries
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", view); err != nil {
		logging.Errorf("[server] render index: %v", err)
	}
}
