package catalog

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return questionTypes[QuestionType(fl.Field().String())]
	})
	_ = validate.RegisterValidation("gender_visibility", func(fl validator.FieldLevel) bool {
		switch GenderVisibility(fl.Field().String()) {
		case VisibleAll, VisibleMale, VisibleFemale, VisibleFemaleOther:
			return true
		}
		return false
	})
	_ = validate.RegisterValidation("section", func(fl validator.FieldLevel) bool {
		switch Section(fl.Field().String()) {
		case SectionDemographics, SectionConditions, SectionMedications, SectionDocuments:
			return true
		}
		return false
	})
	return validate
}

// validate checks field-level tags first and then the cross-question rules the
// flow engine depends on.
func (c *Catalog) validate(doc *document) error {
	if err := newValidator().Struct(doc); err != nil {
		return fmt.Errorf("catalog fields: %w", err)
	}

	var errs []error

	categories := make(map[string]bool, len(doc.Categories))
	for _, cat := range doc.Categories {
		if categories[cat.ID] {
			errs = append(errs, fmt.Errorf("duplicate health category %q", cat.ID))
		}
		categories[cat.ID] = true
	}

	seen := make(map[string]bool)
	check := func(expected Section, questions []Question, needsCategory bool) {
		for _, q := range questions {
			if seen[q.ID] {
				errs = append(errs, fmt.Errorf("duplicate question id %q", q.ID))
			}
			seen[q.ID] = true

			if q.Section != expected {
				errs = append(errs, fmt.Errorf("question %q: section %q listed under %q", q.ID, q.Section, expected))
			}
			if needsCategory && !categories[q.HealthCategory] {
				errs = append(errs, fmt.Errorf("question %q: unknown health category %q", q.ID, q.HealthCategory))
			}
			if q.Type.HasOptions() && len(q.Options) == 0 {
				errs = append(errs, fmt.Errorf("question %q: %s without options", q.ID, q.Type))
			}
			if (q.Type == TypeHeight || q.Type == TypeWeight) && len(q.Units) == 0 {
				errs = append(errs, fmt.Errorf("question %q: %s without units", q.ID, q.Type))
			}

			children := make(map[string]bool, len(q.ConditionalChildren))
			for _, child := range q.ConditionalChildren {
				if children[child.ID] || child.ID == q.ID {
					errs = append(errs, fmt.Errorf("question %q: duplicate child id %q", q.ID, child.ID))
				}
				children[child.ID] = true
				if child.Type.HasOptions() && len(child.Options) == 0 {
					errs = append(errs, fmt.Errorf("question %q: child %q without options", q.ID, child.ID))
				}
			}
		}
	}
	check(SectionDemographics, doc.Demographics, false)
	check(SectionConditions, doc.Conditions, true)
	check(SectionMedications, doc.Medications, true)
	check(SectionDocuments, doc.Documents, true)

	if !seen[GenderQuestionID] {
		errs = append(errs, fmt.Errorf("missing gender question %q", GenderQuestionID))
	}
	if len(doc.Medications) > 0 {
		first := doc.Medications[0]
		if first.ID != GatekeeperQuestionID || first.Type != TypeYesNo {
			errs = append(errs, fmt.Errorf("first medication question must be the yes-no gatekeeper %q", GatekeeperQuestionID))
		}
	}

	return errors.Join(errs...)
}
