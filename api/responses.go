package api

import (
	"medintake.com/intake/answers"
	"medintake.com/intake/catalog"
	"medintake.com/intake/flow"
	"encoding/json"
	"github.com/rs/zerolog"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

type positionResponse struct {
	Moved      bool      `json:"moved"`
	Step       flow.Step `json:"step"`
	Progress   int       `json:"progress"`
	TotalSteps int       `json:"total_steps"`
	IsFirst    bool      `json:"is_first"`
	IsLast     bool      `json:"is_last"`
}

type currentResponse struct {
	positionResponse
	Question *catalog.Question          `json:"question,omitempty"`
	Children []catalog.ConditionalChild `json:"children,omitempty"`
	Options  []string                   `json:"options,omitempty"`
	Answer   *answers.Answer            `json:"answer,omitempty"`
}

type stepsResponse struct {
	Steps    []flow.Step `json:"steps"`
	Current  flow.Step   `json:"current"`
	Progress int         `json:"progress"`
}

type progressResponse struct {
	Progress      int `json:"progress"`
	TotalSteps    int `json:"total_steps"`
	AnsweredCount int `json:"answered_count"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	positionResponse
}

type categoriesResponse struct {
	Categories []string    `json:"categories"`
	Steps      []flow.Step `json:"steps"`
}

// answerRequest is also the document merge patches are applied to.
type answerRequest struct {
	Value       answers.Value            `json:"value"`
	ChildValues map[string]answers.Value `json:"childValues,omitempty"`
	OtherValues map[string]string        `json:"otherValues,omitempty"`
}

type categoriesRequest struct {
	Categories []string `json:"categories"`
}

type gotoRequest struct {
	Phase      flow.Phase `json:"phase"`
	QuestionID string     `json:"questionId"`
	Index      int        `json:"index"`
}

type submitRequest struct {
	Consent bool `json:"consent"`
}

func position(engine *flow.Engine, moved bool) positionResponse {
	return positionResponse{
		Moved:      moved,
		Step:       engine.CurrentStep(),
		Progress:   engine.Progress(),
		TotalSteps: engine.TotalSteps(),
		IsFirst:    engine.IsFirst(),
		IsLast:     engine.IsLast(),
	}
}

func writeJSON(w http.ResponseWriter, reqLogger *zerolog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		reqLogger.Err(err).Msg("Could not write response")
	}
}

func writeError(w http.ResponseWriter, reqLogger *zerolog.Logger, status int, err error) {
	event := reqLogger.Warn()
	if status >= http.StatusInternalServerError {
		event = reqLogger.Error()
	}
	event.Err(err).Int("status", status).Msg("Request failed")
	writeJSON(w, reqLogger, status, errorResponse{Error: err.Error()})
}

func writeText(w http.ResponseWriter, reqLogger *zerolog.Logger, contentType string, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		reqLogger.Err(err).Msg("Could not write response")
	}
}
