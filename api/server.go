package api

import (
	"medintake.com/intake/review"
	"medintake.com/intake/rules"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"net/http"
)

const sessionIDParam = "session_id"
const questionIDParam = "question_id"

// Server exposes intake sessions over HTTP for a remote presentation layer.
type Server struct {
	registry  *Registry
	submitter *review.Submitter
	rules     []rules.Rule
}

func NewServer(registry *Registry, submitter *review.Submitter, ruleSet []rules.Rule) *Server {
	return &Server{
		registry:  registry,
		submitter: submitter,
		rules:     ruleSet,
	}
}

func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogging)

	router.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Delete("/", s.deleteSession)
			r.Get("/steps", s.getSteps)
			r.Get("/current", s.getCurrent)
			r.Get("/progress", s.getProgress)
			r.Get("/answers", s.listAnswers)
			r.Get("/answers/{question_id}", s.getAnswer)
			r.Put("/answers/{question_id}", s.putAnswer)
			r.Patch("/answers/{question_id}", s.patchAnswer)
			r.Put("/categories", s.putCategories)
			r.Post("/next", s.next)
			r.Post("/back", s.back)
			r.Post("/skip", s.skip)
			r.Post("/continue", s.continueFlow)
			r.Post("/review", s.goToReview)
			r.Post("/goto", s.goTo)
			r.Post("/reset", s.reset)
			r.Get("/events", s.getEvents)
			r.Get("/export", s.exportCSV)
			r.Get("/summary", s.getSummary)
			r.Get("/report", s.getReport)
			r.Post("/submit", s.submit)
		})
	})
	return router
}
