package flow

import (
	"medintake.com/intake/answers"
	"medintake.com/intake/catalog"
	"math"
)

func (e *Engine) visibleDemographicsLocked() []*catalog.Question {
	var result []*catalog.Question
	for _, q := range e.catalog.Demographics() {
		if q.GenderVisibility.Visible(e.gender) {
			result = append(result, q)
		}
	}
	return result
}

func (e *Engine) isSelectedLocked(category string) bool {
	for _, c := range e.selected {
		if c == category {
			return true
		}
	}
	return false
}

// Condition questions follow the order the categories were selected in, and
// catalog order within a category.
func (e *Engine) visibleConditionsLocked() []*catalog.Question {
	conditions := e.catalog.Conditions()
	var result []*catalog.Question
	for _, category := range e.selected {
		if category == catalog.CategoryMedications || category == catalog.CategoryDocuments {
			continue
		}
		for _, q := range conditions {
			if q.HealthCategory == category && q.GenderVisibility.Visible(e.gender) {
				result = append(result, q)
			}
		}
	}
	return result
}

// The gatekeeper alone is shown once it was answered No.
func (e *Engine) visibleMedicationsLocked() []*catalog.Question {
	if !e.isSelectedLocked(catalog.CategoryMedications) {
		return nil
	}
	medications := e.catalog.Medications()
	if len(medications) == 0 {
		return nil
	}
	if a, ok := e.store.Get(medications[0].ID); ok {
		if b, isBool := a.Value.AsBool(); isBool && !b {
			return medications[:1]
		}
	}
	return medications
}

func (e *Engine) visibleDocumentsLocked() []*catalog.Question {
	if !e.isSelectedLocked(catalog.CategoryDocuments) {
		return nil
	}
	return e.catalog.Documents()
}

func appendPhase(steps []Step, phase Phase, questions []*catalog.Question) []Step {
	for i, q := range questions {
		steps = append(steps, Step{Phase: phase, QuestionID: q.ID, Index: i})
	}
	return steps
}

// stepsLocked derives the flow from the current answers and selections. It is
// recomputed on every call.
func (e *Engine) stepsLocked() []Step {
	var steps []Step
	steps = appendPhase(steps, PhaseDemographics, e.visibleDemographicsLocked())
	steps = append(steps, Step{Phase: PhaseHealthOverview})
	if len(e.selected) > 0 {
		steps = appendPhase(steps, PhaseConditions, e.visibleConditionsLocked())
	}
	steps = appendPhase(steps, PhaseMedications, e.visibleMedicationsLocked())
	steps = appendPhase(steps, PhaseDocuments, e.visibleDocumentsLocked())
	return steps
}

func indexOf(steps []Step, step Step) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return -1
}

func (e *Engine) FlowSteps() []Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepsLocked()
}

func (e *Engine) TotalSteps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.stepsLocked())
}

// Progress is the rounded percentage of the current step within the flow, or 0
// when the current step is not part of it.
func (e *Engine) Progress() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	steps := e.stepsLocked()
	i := indexOf(steps, e.current)
	if i < 0 || len(steps) == 0 {
		return 0
	}
	return int(math.Round(float64(i+1) / float64(len(steps)) * 100))
}

func (e *Engine) CurrentStep() Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// IsFirst and IsLast locate the current step in the flow; both are false when
// it cannot be found.
func (e *Engine) IsFirst() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return indexOf(e.stepsLocked(), e.current) == 0
}

func (e *Engine) IsLast() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps := e.stepsLocked()
	i := indexOf(steps, e.current)
	return i >= 0 && i == len(steps)-1
}

// CurrentQuestion resolves the current step to its question. Health overview,
// documents and review have none.
func (e *Engine) CurrentQuestion() (*catalog.Question, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentQuestionLocked()
}

func (e *Engine) currentQuestionLocked() (*catalog.Question, bool) {
	var visible []*catalog.Question
	switch e.current.Phase {
	case PhaseDemographics:
		visible = e.visibleDemographicsLocked()
		if e.current.QuestionID == "" {
			if e.current.Index >= 0 && e.current.Index < len(visible) {
				return visible[e.current.Index], true
			}
			return nil, false
		}
	case PhaseConditions:
		visible = e.visibleConditionsLocked()
	case PhaseMedications:
		visible = e.visibleMedicationsLocked()
	default:
		return nil, false
	}
	for _, q := range visible {
		if q.ID == e.current.QuestionID {
			return q, true
		}
	}
	return nil, false
}

func (e *Engine) VisibleDemographicQuestions() []*catalog.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleDemographicsLocked()
}

func (e *Engine) VisibleConditionQuestions() []*catalog.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleConditionsLocked()
}

func (e *Engine) VisibleMedicationQuestions() []*catalog.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleMedicationsLocked()
}

// VisibleChildren lists the conditional children revealed by the recorded answer
// of a question. Nothing is revealed until the answer is affirmative.
func (e *Engine) VisibleChildren(questionID string) []catalog.ConditionalChild {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.catalog.Question(questionID)
	if !ok {
		return nil
	}
	a, ok := e.store.Get(questionID)
	if !ok || !a.Value.Truthy() {
		return nil
	}
	return q.VisibleChildren(e.gender)
}

// OptionsFor returns the options to offer for a question under the recorded gender.
func (e *Engine) OptionsFor(questionID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.catalog.Question(questionID)
	if !ok {
		return nil
	}
	return e.catalog.OptionsFor(q, e.gender)
}

func (e *Engine) Gender() catalog.Gender {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gender
}

func (e *Engine) SelectedHealthCategories() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.selected...)
}

func (e *Engine) TakesRegularMedication() (bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.takesMeds == nil {
		return false, false
	}
	return *e.takesMeds, true
}

func (e *Engine) Answer(questionID string) (answers.Answer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(questionID)
}

// Answers returns every recorded answer in first-answered order.
func (e *Engine) Answers() []answers.Answer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.All()
}

func (e *Engine) AnsweredCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Len()
}
