package catalog

import (
	"medintake.com/intake/utils"
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"sync"
)

//go:embed data/intake.yaml
var defaultCatalog []byte

var (
	defaultOnce sync.Once
	defaultInst *Catalog
	defaultErr  error
)

type urologyOptions struct {
	Male   []string `yaml:"male"`
	Female []string `yaml:"female"`
}

// document is the on-disk layout. Option lists are usually YAML aliases into
// an option_sets block which is not decoded on its own.
type document struct {
	Version        int              `yaml:"version" validate:"min=1"`
	Categories     []HealthCategory `yaml:"categories" validate:"required,dive"`
	UrologyOptions urologyOptions   `yaml:"urology_options"`
	DocumentTypes  []string         `yaml:"document_types"`
	Demographics   []Question       `yaml:"demographics" validate:"required,dive"`
	Conditions     []Question       `yaml:"conditions" validate:"omitempty,dive"`
	Medications    []Question       `yaml:"medications" validate:"omitempty,dive"`
	Documents      []Question       `yaml:"documents" validate:"omitempty,dive"`
}

// Catalog is the read-only set of question definitions. It is safe for
// concurrent use; returned questions must not be modified.
type Catalog struct {
	version       int
	categories    []HealthCategory
	demographics  []*Question
	conditions    []*Question
	medications   []*Question
	documents     []*Question
	urologyMale   []string
	urologyFemale []string
	documentTypes []string

	questions   map[string]*Question
	categoryIdx map[string]int
	fingerprint string
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultInst, defaultErr = Parse(defaultCatalog)
	})
	return defaultInst, defaultErr
}

func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(raw)
}

func Load(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML catalog, alphabetizes every option list and validates the result.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	c := &Catalog{
		version:       doc.Version,
		categories:    doc.Categories,
		urologyMale:   SortAlphabetically(doc.UrologyOptions.Male),
		urologyFemale: SortAlphabetically(doc.UrologyOptions.Female),
		documentTypes: SortAlphabetically(doc.DocumentTypes),
		questions:     make(map[string]*Question),
		categoryIdx:   make(map[string]int, len(doc.Categories)),
		fingerprint:   utils.HexHash(utils.HashBytes(raw)),
	}
	if err := c.validate(&doc); err != nil {
		return nil, err
	}

	for i, cat := range c.categories {
		c.categoryIdx[cat.ID] = i
	}
	c.demographics = c.index(doc.Demographics)
	c.conditions = c.index(doc.Conditions)
	c.medications = c.index(doc.Medications)
	c.documents = c.index(doc.Documents)

	return c, nil
}

func (c *Catalog) index(questions []Question) []*Question {
	result := make([]*Question, len(questions))
	for i := range questions {
		q := &questions[i]
		q.Options = SortAlphabetically(q.Options)
		for j := range q.ConditionalChildren {
			q.ConditionalChildren[j].Options = SortAlphabetically(q.ConditionalChildren[j].Options)
		}
		c.questions[q.ID] = q
		result[i] = q
	}
	return result
}

func (c *Catalog) Version() int {
	return c.version
}

// Fingerprint identifies the catalog content. Persisted sessions built against
// another fingerprint are discarded.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}

func (c *Catalog) Question(id string) (*Question, bool) {
	q, ok := c.questions[id]
	return q, ok
}

func (c *Catalog) Category(id string) (HealthCategory, bool) {
	i, ok := c.categoryIdx[id]
	if !ok {
		return HealthCategory{}, false
	}
	return c.categories[i], true
}

func (c *Catalog) Categories() []HealthCategory {
	return append([]HealthCategory(nil), c.categories...)
}

func (c *Catalog) Demographics() []*Question {
	return append([]*Question(nil), c.demographics...)
}

func (c *Catalog) Conditions() []*Question {
	return append([]*Question(nil), c.conditions...)
}

func (c *Catalog) Medications() []*Question {
	return append([]*Question(nil), c.medications...)
}

func (c *Catalog) Documents() []*Question {
	return append([]*Question(nil), c.documents...)
}

// All returns every question in section order.
func (c *Catalog) All() []*Question {
	all := make([]*Question, 0, len(c.questions))
	all = append(all, c.demographics...)
	all = append(all, c.conditions...)
	all = append(all, c.medications...)
	all = append(all, c.documents...)
	return all
}

func (c *Catalog) DocumentTypes() []string {
	return append([]string(nil), c.documentTypes...)
}

// UrologyOptions extends the base kidney options with the gender specific list.
// Female and Other share a list; an unset gender gets the base list only.
func (c *Catalog) UrologyOptions(g Gender) []string {
	var base []string
	if q, ok := c.questions[KidneyQuestionID]; ok {
		base = q.Options
	}
	switch g {
	case GenderMale:
		return SortAlphabetically(append(append([]string(nil), base...), c.urologyMale...))
	case GenderFemale, GenderOther:
		return SortAlphabetically(append(append([]string(nil), base...), c.urologyFemale...))
	}
	return append([]string(nil), base...)
}

// OptionsFor returns the options shown for a question given the recorded gender.
func (c *Catalog) OptionsFor(q *Question, g Gender) []string {
	if q.ID == KidneyQuestionID {
		return c.UrologyOptions(g)
	}
	return append([]string(nil), q.Options...)
}
