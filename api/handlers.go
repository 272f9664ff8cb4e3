package api

import (
	"medintake.com/intake/flow"
	"medintake.com/intake/review"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/evanphx/json-patch"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// session resolves the engine of the request, writing the error response when it cannot.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*flow.Engine, zerolog.Logger, bool) {
	id := chi.URLParam(r, sessionIDParam)
	reqLogger := makeRequestLogger(r, id)
	engine, err := s.registry.Get(r.Context(), id)
	switch {
	case errors.Is(err, ErrInvalidSession):
		writeError(w, &reqLogger, http.StatusBadRequest, err)
		return nil, reqLogger, false
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, &reqLogger, http.StatusNotFound, err)
		return nil, reqLogger, false
	case err != nil:
		writeError(w, &reqLogger, http.StatusInternalServerError, err)
		return nil, reqLogger, false
	}
	return engine, reqLogger, true
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	reqLogger := makeRequestLogger(r, "")
	engine, err := s.registry.Create(r.Context())
	if err != nil {
		writeError(w, &reqLogger, http.StatusInternalServerError, err)
		return
	}
	reqLogger.Info().Str("session_id", engine.SessionID()).Msg("Session created")
	writeJSON(w, &reqLogger, http.StatusCreated, sessionResponse{
		SessionID:        engine.SessionID(),
		positionResponse: position(engine, false),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, sessionIDParam)
	reqLogger := makeRequestLogger(r, id)
	if err := s.registry.Remove(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidSession) {
			status = http.StatusBadRequest
		}
		writeError(w, &reqLogger, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSteps(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, stepsResponse{
		Steps:    engine.FlowSteps(),
		Current:  engine.CurrentStep(),
		Progress: engine.Progress(),
	})
}

func (s *Server) getCurrent(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	resp := currentResponse{positionResponse: position(engine, false)}
	if q, found := engine.CurrentQuestion(); found {
		resp.Question = q
		resp.Children = engine.VisibleChildren(q.ID)
		resp.Options = engine.OptionsFor(q.ID)
		if a, answered := engine.Answer(q.ID); answered {
			resp.Answer = &a
		}
	}
	writeJSON(w, &reqLogger, http.StatusOK, resp)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, progressResponse{
		Progress:      engine.Progress(),
		TotalSteps:    engine.TotalSteps(),
		AnsweredCount: engine.AnsweredCount(),
	})
}

func (s *Server) listAnswers(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, engine.Answers())
}

func (s *Server) getAnswer(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	questionID := chi.URLParam(r, questionIDParam)
	a, found := engine.Answer(questionID)
	if !found {
		writeError(w, &reqLogger, http.StatusNotFound, fmt.Errorf("no answer for %s", questionID))
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, a)
}

func (s *Server) putAnswer(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, &reqLogger, http.StatusBadRequest, err)
		return
	}
	s.setAnswer(w, engine, &reqLogger, chi.URLParam(r, questionIDParam), req)
}

// patchAnswer applies an RFC 7386 merge patch to the stored answer, so a client
// can change one child or other value without resending the rest.
func (s *Server) patchAnswer(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	questionID := chi.URLParam(r, questionIDParam)
	patch, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, &reqLogger, http.StatusBadRequest, err)
		return
	}

	var current answerRequest
	if a, found := engine.Answer(questionID); found {
		current = answerRequest{Value: a.Value, ChildValues: a.ChildValues, OtherValues: a.OtherValues}
	}
	doc, err := json.Marshal(current)
	if err != nil {
		writeError(w, &reqLogger, http.StatusInternalServerError, err)
		return
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		writeError(w, &reqLogger, http.StatusBadRequest, fmt.Errorf("invalid merge patch: %w", err))
		return
	}
	var req answerRequest
	if err := json.Unmarshal(merged, &req); err != nil {
		writeError(w, &reqLogger, http.StatusBadRequest, err)
		return
	}
	s.setAnswer(w, engine, &reqLogger, questionID, req)
}

func (s *Server) setAnswer(w http.ResponseWriter, engine *flow.Engine, reqLogger *zerolog.Logger, questionID string, req answerRequest) {
	err := engine.SetAnswer(questionID, req.Value, req.ChildValues, req.OtherValues)
	switch {
	case errors.Is(err, flow.ErrUnknownQuestion):
		writeError(w, reqLogger, http.StatusNotFound, err)
		return
	case errors.Is(err, flow.ErrValueMismatch):
		writeError(w, reqLogger, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		writeError(w, reqLogger, http.StatusInternalServerError, err)
		return
	}
	a, _ := engine.Answer(questionID)
	writeJSON(w, reqLogger, http.StatusOK, a)
}

func (s *Server) putCategories(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	var req categoriesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, &reqLogger, http.StatusBadRequest, err)
		return
	}
	selected := engine.SetHealthCategories(req.Categories)
	writeJSON(w, &reqLogger, http.StatusOK, categoriesResponse{
		Categories: selected,
		Steps:      engine.FlowSteps(),
	})
}

func (s *Server) move(w http.ResponseWriter, r *http.Request, op func(*flow.Engine) bool) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	moved := op(engine)
	writeJSON(w, &reqLogger, http.StatusOK, position(engine, moved))
}

func (s *Server) next(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, (*flow.Engine).GoToNext)
}

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, (*flow.Engine).GoBack)
}

func (s *Server) skip(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, (*flow.Engine).SkipCurrent)
}

func (s *Server) continueFlow(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, func(engine *flow.Engine) bool {
		before := engine.CurrentStep()
		return engine.Continue() != before
	})
}

func (s *Server) goToReview(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, func(engine *flow.Engine) bool {
		engine.GoToReview()
		return true
	})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, func(engine *flow.Engine) bool {
		engine.Reset()
		return true
	})
}

// goTo jumps to an explicit step, or to the step of a question when only its id is given.
func (s *Server) goTo(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	var req gotoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, &reqLogger, http.StatusBadRequest, err)
		return
	}
	var moved bool
	switch {
	case req.Phase == "" && req.QuestionID != "":
		moved = engine.GoToQuestionByID(req.QuestionID)
	case req.Phase.Valid():
		moved = engine.GoToStep(flow.Step{Phase: req.Phase, QuestionID: req.QuestionID, Index: req.Index})
	default:
		writeError(w, &reqLogger, http.StatusBadRequest, fmt.Errorf("unknown phase %q", req.Phase))
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, position(engine, moved))
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, engine.Events())
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	csv, err := engine.ExportAnswers()
	if err != nil {
		writeError(w, &reqLogger, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", engine.SessionID()+".csv"))
	writeText(w, &reqLogger, "text/csv; charset=utf-8", csv)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	writeText(w, &reqLogger, "text/plain; charset=utf-8", engine.Summary())
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, review.Build(engine, s.rules))
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	engine, reqLogger, ok := s.session(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, &reqLogger, http.StatusBadRequest, err)
		return
	}
	receipt, err := s.submitter.Submit(r.Context(), engine, req.Consent)
	switch {
	case errors.Is(err, review.ErrConflicts):
		writeError(w, &reqLogger, http.StatusConflict, err)
		return
	case errors.Is(err, review.ErrConsentRequired):
		writeError(w, &reqLogger, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		writeError(w, &reqLogger, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, receipt)
}
