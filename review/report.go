package review

import (
	"medintake.com/intake/answers"
	"medintake.com/intake/catalog"
	"medintake.com/intake/export"
	"medintake.com/intake/rules"
	"sort"
)

const Skipped = "Skipped"

// Session is the read side of an intake session the review screen is built from.
type Session interface {
	SessionID() string
	Catalog() *catalog.Catalog
	Answers() []answers.Answer
	SelectedHealthCategories() []string
	VisibleDemographicQuestions() []*catalog.Question
	VisibleConditionQuestions() []*catalog.Question
	VisibleMedicationQuestions() []*catalog.Question
}

type ChildItem struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Display string `json:"display"`
}

type Item struct {
	QuestionID string      `json:"question_id"`
	Question   string      `json:"question"`
	Answered   bool        `json:"answered"`
	Display    string      `json:"display"`
	Other      []string    `json:"other,omitempty"`
	Children   []ChildItem `json:"children,omitempty"`
}

type Section struct {
	Name     catalog.Section `json:"name"`
	Answered int             `json:"answered"`
	Items    []Item          `json:"items"`
}

type Report struct {
	SessionID     string           `json:"session_id"`
	AnsweredCount int              `json:"answered_count"`
	Categories    []string         `json:"categories"`
	Sections      []Section        `json:"sections"`
	Conflicts     []rules.Conflict `json:"conflicts"`
}

// CanSubmit requires consent and no failing rule.
func (r Report) CanSubmit(consent bool) bool {
	return consent && len(r.Conflicts) == 0
}

// Build groups the visible questions by section with their formatted answers.
// Sections without visible questions are left out.
func Build(s Session, ruleSet []rules.Rule) Report {
	c := s.Catalog()
	list := s.Answers()
	byID := make(map[string]answers.Answer, len(list))
	for _, a := range list {
		byID[a.QuestionID] = a
	}

	selected := s.SelectedHealthCategories()
	report := Report{
		SessionID:     s.SessionID(),
		AnsweredCount: len(list),
		Conflicts:     rules.Evaluate(ruleSet, rules.Flatten(list)),
	}
	for _, id := range selected {
		if cat, ok := c.Category(id); ok {
			report.Categories = append(report.Categories, cat.Label)
		}
	}

	var documents []*catalog.Question
	for _, id := range selected {
		if id == catalog.CategoryDocuments {
			documents = c.Documents()
		}
	}

	groups := []struct {
		name      catalog.Section
		questions []*catalog.Question
	}{
		{catalog.SectionDemographics, s.VisibleDemographicQuestions()},
		{catalog.SectionConditions, s.VisibleConditionQuestions()},
		{catalog.SectionMedications, s.VisibleMedicationQuestions()},
		{catalog.SectionDocuments, documents},
	}
	for _, g := range groups {
		if len(g.questions) == 0 {
			continue
		}
		section := Section{Name: g.name}
		for _, q := range g.questions {
			item := buildItem(q, byID)
			if item.Answered {
				section.Answered++
			}
			section.Items = append(section.Items, item)
		}
		report.Sections = append(report.Sections, section)
	}
	return report
}

func buildItem(q *catalog.Question, byID map[string]answers.Answer) Item {
	item := Item{QuestionID: q.ID, Question: q.Question, Display: Skipped}
	a, ok := byID[q.ID]
	if !ok {
		return item
	}

	item.Answered = true
	item.Display = export.FormatValue(a.Value, a.OtherValues)
	for _, v := range a.OtherValues {
		if v != "" {
			item.Other = append(item.Other, v)
		}
	}
	sort.Strings(item.Other)
	for _, child := range q.ConditionalChildren {
		v, ok := a.ChildValues[child.ID]
		if !ok {
			continue
		}
		item.Children = append(item.Children, ChildItem{
			ID:      child.ID,
			Label:   child.Label,
			Display: export.FormatValue(v, nil),
		})
	}
	return item
}
