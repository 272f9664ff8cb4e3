package flow

import (
	"medintake.com/intake/answers"
	"medintake.com/intake/catalog"
	"context"
	"errors"
	"time"
)

// StorageKey prefixes persisted sessions. Bump it when the State layout changes.
const StorageKey = "medical-intake-v3-storage"

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrValueMismatch   = errors.New("value does not match question type")
	ErrStateNotFound   = errors.New("persisted state not found")
)

type Phase string

const (
	PhaseDemographics   Phase = "demographics"
	PhaseHealthOverview Phase = "health-overview"
	PhaseConditions     Phase = "conditions"
	PhaseMedications    Phase = "medications"
	PhaseDocuments      Phase = "documents"
	PhaseReview         Phase = "review"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseDemographics, PhaseHealthOverview, PhaseConditions, PhaseMedications, PhaseDocuments, PhaseReview:
		return true
	}
	return false
}

// Step is a position in the flow. Steps are compared structurally; Index is the
// position inside the phase, not in the whole flow.
type Step struct {
	Phase      Phase  `json:"phase"`
	QuestionID string `json:"questionId,omitempty"`
	Index      int    `json:"index"`
}

var ReviewStep = Step{Phase: PhaseReview}

const (
	EventAnswered           = "q_answered"
	EventConditionalOpened  = "conditional_opened"
	EventCategoriesSelected = "health_categories_selected"
	EventSkipped            = "question_skipped"
	EventReviewAttempt      = "review_submit_attempt"
	EventFinalSubmit        = "final_submit"
)

type Event struct {
	Name      string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// State is the persisted form of a session. The time the current question was
// shown is not part of it.
type State struct {
	Answers                  map[string]answers.Answer `json:"answers"`
	CurrentStep              Step                      `json:"currentStep"`
	Gender                   catalog.Gender            `json:"gender"`
	SelectedHealthCategories []string                  `json:"selectedHealthCategories"`
	TakesRegularMedication   *bool                     `json:"takesRegularMedication"`
	StartTime                time.Time                 `json:"startTime"`
	AnalyticsEvents          []Event                   `json:"analyticsEvents"`
	CatalogFingerprint       string                    `json:"catalogFingerprint"`
}

// Persister stores session state. Load returns ErrStateNotFound for unknown sessions.
type Persister interface {
	Load(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, sessionID string, state *State) error
}

// EventSink receives every logged event. Publish must not block.
type EventSink interface {
	Publish(sessionID string, event Event)
}
