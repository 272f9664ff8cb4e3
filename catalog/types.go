package catalog

type QuestionType string

const (
	TypeDropdown    QuestionType = "dropdown"
	TypeYesNo       QuestionType = "yes-no"
	TypeNumeric     QuestionType = "numeric"
	TypeDate        QuestionType = "date"
	TypeHeight      QuestionType = "height"
	TypeWeight      QuestionType = "weight"
	TypeMultiSelect QuestionType = "multi-select"
	TypeFileUpload  QuestionType = "file-upload"
	TypeText        QuestionType = "text"
)

var questionTypes = map[QuestionType]bool{
	TypeDropdown:    true,
	TypeYesNo:       true,
	TypeNumeric:     true,
	TypeDate:        true,
	TypeHeight:      true,
	TypeWeight:      true,
	TypeMultiSelect: true,
	TypeFileUpload:  true,
	TypeText:        true,
}

// HasOptions reports whether answers of this type are picked from an option list.
func (t QuestionType) HasOptions() bool {
	return t == TypeDropdown || t == TypeMultiSelect
}

type Section string

const (
	SectionDemographics Section = "Demographics"
	SectionConditions   Section = "Conditions"
	SectionMedications  Section = "Medications"
	SectionDocuments    Section = "Documents"
)

type GenderVisibility string

const (
	VisibleAll         GenderVisibility = "all"
	VisibleMale        GenderVisibility = "male"
	VisibleFemale      GenderVisibility = "female"
	VisibleFemaleOther GenderVisibility = "female-other"
)

type Gender string

const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// ParseGender maps a recorded gender answer to a Gender. Anything that is not
// one of the catalog options resets to unset.
func ParseGender(s string) Gender {
	switch Gender(s) {
	case GenderMale, GenderFemale, GenderOther:
		return Gender(s)
	}
	return GenderUnset
}

// Visible is the gender gate applied to demographic and condition questions.
// An unset gender keeps female-other questions visible until Male is recorded.
func (v GenderVisibility) Visible(g Gender) bool {
	switch v {
	case VisibleFemaleOther:
		return g != GenderMale
	case VisibleFemale:
		return g == GenderFemale
	case VisibleMale:
		return g == GenderMale
	}
	return true
}

const (
	CategoryMedications = "medications"
	CategoryDocuments   = "documents"

	GenderQuestionID     = "gender"
	GatekeeperQuestionID = "regular_medications"
	KidneyQuestionID     = "kidney_conditions"
	DocumentQuestionID   = "document_upload"
)

// children hidden for Male regardless of the parent's visibility
var maleSuppressedChildren = map[string]bool{
	"last_period":   true,
	"due_date":      true,
	"prenatal_meds": true,
}

type HealthCategory struct {
	ID    string `yaml:"id" json:"id" validate:"required"`
	Label string `yaml:"label" json:"label" validate:"required"`
	Icon  string `yaml:"icon" json:"icon"`
}

type ConditionalChild struct {
	ID               string           `yaml:"id" json:"id" validate:"required"`
	Label            string           `yaml:"label" json:"label" validate:"required"`
	Type             QuestionType     `yaml:"type" json:"type" validate:"required,question_type"`
	Options          []string         `yaml:"options,omitempty" json:"options,omitempty"`
	Required         bool             `yaml:"required,omitempty" json:"required,omitempty"`
	Placeholder      string           `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Units            []string         `yaml:"units,omitempty" json:"units,omitempty"`
	Tooltip          string           `yaml:"tooltip,omitempty" json:"tooltip,omitempty"`
	GenderVisibility GenderVisibility `yaml:"gender_visibility,omitempty" json:"gender_visibility,omitempty" validate:"omitempty,gender_visibility"`
}

// VisibleFor applies the child's own gender gate and the fixed Male suppression list.
func (c ConditionalChild) VisibleFor(g Gender) bool {
	if g == GenderMale && maleSuppressedChildren[c.ID] {
		return false
	}
	if c.GenderVisibility == "" {
		return true
	}
	return c.GenderVisibility.Visible(g)
}

type Question struct {
	ID                  string             `yaml:"id" json:"id" validate:"required"`
	Section             Section            `yaml:"section" json:"section" validate:"required,section"`
	Question            string             `yaml:"question" json:"question" validate:"required"`
	Type                QuestionType       `yaml:"type" json:"type" validate:"required,question_type"`
	Options             []string           `yaml:"options,omitempty" json:"options,omitempty"`
	Required            bool               `yaml:"required,omitempty" json:"required"`
	GenderVisibility    GenderVisibility   `yaml:"gender_visibility" json:"gender_visibility" validate:"required,gender_visibility"`
	ConditionalChildren []ConditionalChild `yaml:"conditional_children,omitempty" json:"conditional_children,omitempty" validate:"omitempty,dive"`
	Units               []string           `yaml:"units,omitempty" json:"units,omitempty"`
	Placeholder         string             `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Tooltip             string             `yaml:"tooltip,omitempty" json:"tooltip,omitempty"`
	IsOptional          bool               `yaml:"is_optional,omitempty" json:"is_optional,omitempty"`
	OutOfScope          bool               `yaml:"out_of_scope,omitempty" json:"out_of_scope,omitempty"`
	DatasetFlag         string             `yaml:"dataset_flag,omitempty" json:"dataset_flag,omitempty"`
	HealthCategory      string             `yaml:"health_category,omitempty" json:"health_category,omitempty"`
	SkipGatekeeper      bool               `yaml:"skip_gatekeeper,omitempty" json:"skip_gatekeeper,omitempty"`
}

func (q *Question) Child(id string) (ConditionalChild, bool) {
	for _, c := range q.ConditionalChildren {
		if c.ID == id {
			return c, true
		}
	}
	return ConditionalChild{}, false
}

// VisibleChildren returns the conditional children shown for the given gender,
// in catalog order.
func (q *Question) VisibleChildren(g Gender) []ConditionalChild {
	var children []ConditionalChild
	for _, c := range q.ConditionalChildren {
		if c.VisibleFor(g) {
			children = append(children, c)
		}
	}
	return children
}
