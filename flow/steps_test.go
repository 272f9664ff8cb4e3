package flow

import (
	"medintake.com/intake/answers"
	"medintake.com/intake/catalog"
	"context"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	log := zerolog.Nop()
	if opts.Logger == nil {
		opts.Logger = &log
	}
	if opts.SessionID == "" {
		opts.SessionID = "test-session"
	}
	if opts.AutoAdvanceDelay == 0 {
		opts.AutoAdvanceDelay = 10 * time.Millisecond
	}
	e, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func stepsOf(steps []Step, phase Phase) []string {
	var ids []string
	for _, s := range steps {
		if s.Phase == phase {
			ids = append(ids, s.QuestionID)
		}
	}
	return ids
}

func TestDemographicsFollowGender(t *testing.T) {
	for _, gender := range []string{"", "Male", "Female", "Other"} {
		t.Run("gender "+gender, func(t *testing.T) {
			e := newEngine(t, Options{})
			if gender != "" {
				require.NoError(t, e.SetAnswer(catalog.GenderQuestionID, answers.Text(gender), nil, nil))
			}

			ids := stepsOf(e.FlowSteps(), PhaseDemographics)
			if gender == "Male" {
				require.Len(t, ids, 8)
				require.NotContains(t, ids, "pregnant")
				require.NotContains(t, ids, "last_period")
			} else {
				require.Len(t, ids, 10)
				require.Contains(t, ids, "pregnant")
				require.Contains(t, ids, "last_period")
			}
		})
	}
}

func TestDemographicsRecomputedAfterGenderChange(t *testing.T) {
	e := newEngine(t, Options{})
	require.Len(t, e.VisibleDemographicQuestions(), 10)

	require.NoError(t, e.SetAnswer("gender", answers.Text("Male"), nil, nil))
	require.Len(t, e.VisibleDemographicQuestions(), 8)
	require.Equal(t, catalog.GenderMale, e.Gender())

	require.NoError(t, e.SetAnswer("gender", answers.Text("Female"), nil, nil))
	require.Len(t, e.VisibleDemographicQuestions(), 10)

	steps := e.FlowSteps()
	for i, s := range steps[:10] {
		require.Equal(t, i, s.Index)
	}
}

func TestInitialFlow(t *testing.T) {
	e := newEngine(t, Options{})
	steps := e.FlowSteps()

	require.Len(t, steps, 11)
	require.Equal(t, Step{Phase: PhaseDemographics, QuestionID: "age_group", Index: 0}, steps[0])
	require.Equal(t, Step{Phase: PhaseHealthOverview, Index: 0}, steps[10])
	require.Equal(t, 11, e.TotalSteps())
	require.Equal(t, steps[0], e.CurrentStep())
	require.True(t, e.IsFirst())
	require.False(t, e.IsLast())
}

func TestConditionsFollowSelectionOrder(t *testing.T) {
	e := newEngine(t, Options{})

	e.SetHealthCategories([]string{"lungs", "heart", "allergies"})
	first := e.FlowSteps()
	require.Equal(t, []string{"lung_conditions", "heart_conditions", "allergy_causes", "allergy_reactions"}, stepsOf(first, PhaseConditions))

	e.SetHealthCategories([]string{"allergies", "heart", "lungs"})
	second := e.FlowSteps()
	require.Equal(t, []string{"allergy_causes", "allergy_reactions", "heart_conditions", "lung_conditions"}, stepsOf(second, PhaseConditions))
	require.Len(t, second, len(first))

	var indexes []int
	for _, s := range second {
		if s.Phase == PhaseConditions {
			indexes = append(indexes, s.Index)
		}
	}
	require.Equal(t, []int{0, 1, 2, 3}, indexes)
}

func TestConditionsIgnorePseudoCategories(t *testing.T) {
	e := newEngine(t, Options{})

	e.SetHealthCategories([]string{"medications", "documents"})
	steps := e.FlowSteps()
	require.Empty(t, stepsOf(steps, PhaseConditions))
	require.Len(t, stepsOf(steps, PhaseMedications), 11)
	require.Equal(t, []string{"document_upload"}, stepsOf(steps, PhaseDocuments))
	require.Empty(t, e.VisibleConditionQuestions())
}

func TestSetHealthCategoriesCleansSelection(t *testing.T) {
	e := newEngine(t, Options{})

	selected := e.SetHealthCategories([]string{"heart", "unknown", "heart", "gut"})
	require.Equal(t, []string{"heart", "gut"}, selected)
	require.Equal(t, []string{"heart", "gut"}, e.SelectedHealthCategories())
}

func TestMedicationsGatekeeper(t *testing.T) {
	e := newEngine(t, Options{AutoAdvanceDelay: -1})
	e.SetHealthCategories([]string{"medications"})

	require.Len(t, stepsOf(e.FlowSteps(), PhaseMedications), 11)
	_, known := e.TakesRegularMedication()
	require.False(t, known)

	require.NoError(t, e.SetAnswer(catalog.GatekeeperQuestionID, answers.Bool(false), nil, nil))
	require.Equal(t, []string{catalog.GatekeeperQuestionID}, stepsOf(e.FlowSteps(), PhaseMedications))
	takes, known := e.TakesRegularMedication()
	require.True(t, known)
	require.False(t, takes)

	require.NoError(t, e.SetAnswer(catalog.GatekeeperQuestionID, answers.Bool(true), nil, nil))
	require.Len(t, e.VisibleMedicationQuestions(), 11)
	takes, _ = e.TakesRegularMedication()
	require.True(t, takes)

	require.NoError(t, e.SetAnswer(catalog.GatekeeperQuestionID, answers.None(), nil, nil))
	require.Len(t, e.VisibleMedicationQuestions(), 11)
	_, known = e.TakesRegularMedication()
	require.False(t, known)
}

func TestFlowStepsIdempotent(t *testing.T) {
	e := newEngine(t, Options{})
	e.SetHealthCategories([]string{"kidney", "medications", "documents", "mental"})
	require.NoError(t, e.SetAnswer("gender", answers.Text("Other"), nil, nil))

	if diff := cmp.Diff(e.FlowSteps(), e.FlowSteps()); diff != "" {
		t.Errorf("flow steps differ between calls (-first +second):\n%s", diff)
	}
}

func TestProgress(t *testing.T) {
	e := newEngine(t, Options{})
	e.SetHealthCategories([]string{"heart", "medications"})
	total := e.TotalSteps()
	require.Equal(t, 10+1+1+11, total)

	previous := 0
	for i := 0; i < total; i++ {
		p := e.Progress()
		require.GreaterOrEqual(t, p, previous)
		require.LessOrEqual(t, p, 100)
		previous = p
		if i < total-1 {
			require.True(t, e.GoToNext())
		}
	}
	require.Equal(t, 100, previous)
	require.True(t, e.IsLast())
	require.False(t, e.GoToNext())
}

func TestProgressAfterReset(t *testing.T) {
	e := newEngine(t, Options{})
	e.SetHealthCategories([]string{"heart"})
	require.NoError(t, e.SetAnswer("age_group", answers.Text("1980-1989"), nil, nil))
	e.GoToNext()
	e.GoToNext()

	e.Reset()
	require.Equal(t, Step{Phase: PhaseDemographics, QuestionID: "age_group", Index: 0}, e.CurrentStep())
	require.Empty(t, e.Answers())
	require.Empty(t, e.SelectedHealthCategories())
	require.Empty(t, e.Events())
	require.Equal(t, catalog.GenderUnset, e.Gender())
	// first of 10 demographic steps plus the health overview
	require.Equal(t, 9, e.Progress())
}

func TestCurrentQuestion(t *testing.T) {
	e := newEngine(t, Options{})
	e.SetHealthCategories([]string{"heart", "medications", "documents"})

	q, ok := e.CurrentQuestion()
	require.True(t, ok)
	require.Equal(t, "age_group", q.ID)

	require.True(t, e.GoToStep(Step{Phase: PhaseDemographics, Index: 2}))
	q, ok = e.CurrentQuestion()
	require.True(t, ok)
	require.Equal(t, "pregnant", q.ID)

	require.True(t, e.GoToQuestionByID("heart_conditions"))
	q, ok = e.CurrentQuestion()
	require.True(t, ok)
	require.Equal(t, "heart_conditions", q.ID)

	require.True(t, e.GoToQuestionByID("steroid_meds"))
	q, ok = e.CurrentQuestion()
	require.True(t, ok)
	require.Equal(t, "steroid_meds", q.ID)

	for _, step := range []Step{{Phase: PhaseHealthOverview}, {Phase: PhaseDocuments, QuestionID: "document_upload"}, ReviewStep} {
		require.True(t, e.GoToStep(step))
		_, ok = e.CurrentQuestion()
		require.False(t, ok, step.Phase)
	}
}

func TestCurrentQuestionHiddenByGender(t *testing.T) {
	e := newEngine(t, Options{})
	require.True(t, e.GoToQuestionByID("pregnant"))
	require.NoError(t, e.SetAnswer("gender", answers.Text("Male"), nil, nil))

	_, ok := e.CurrentQuestion()
	require.False(t, ok)
	require.Equal(t, 0, e.Progress())
	require.False(t, e.GoToNext())
	require.False(t, e.GoBack())
	require.False(t, e.IsFirst())
	require.False(t, e.IsLast())
}

func TestVisibleChildren(t *testing.T) {
	e := newEngine(t, Options{AutoAdvanceDelay: -1})

	require.Empty(t, e.VisibleChildren("pregnant"))
	require.NoError(t, e.SetAnswer("pregnant", answers.Text("Yes"), nil, nil))
	require.Len(t, e.VisibleChildren("pregnant"), 2)
	require.NoError(t, e.SetAnswer("pregnant", answers.Text("No"), nil, nil))
	require.Empty(t, e.VisibleChildren("pregnant"))

	require.NoError(t, e.SetAnswer("diabetes_meds", answers.Bool(true), nil, nil))
	children := e.VisibleChildren("diabetes_meds")
	require.Len(t, children, 1)
	require.Equal(t, "diabetes_med_types", children[0].ID)

	require.Nil(t, e.VisibleChildren("unknown"))
}

func TestOptionsFor(t *testing.T) {
	e := newEngine(t, Options{})
	c := e.Catalog()

	require.Equal(t, c.UrologyOptions(catalog.GenderUnset), e.OptionsFor(catalog.KidneyQuestionID))
	require.NoError(t, e.SetAnswer("gender", answers.Text("Male"), nil, nil))
	require.Contains(t, e.OptionsFor(catalog.KidneyQuestionID), "Prostate enlarged")
	require.Nil(t, e.OptionsFor("unknown"))
}
