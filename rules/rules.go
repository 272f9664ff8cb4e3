package rules

import (
	"medintake.com/intake/answers"
	"strings"
)

// Flat maps top-level question ids and "parent.child" keys to recorded values.
type Flat map[string]answers.Value

type Rule struct {
	ID          string
	Description string
	// Check returns ok=false with a message for the user when the answers conflict.
	Check func(flat Flat) (ok bool, message string)
}

type Conflict struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
}

func ChildKey(parentID, childID string) string {
	return parentID + "." + childID
}

// Flatten merges answers and their child values into one map. Child ids are
// namespaced by their parent so they never collide with question ids.
func Flatten(list []answers.Answer) Flat {
	flat := make(Flat)
	for _, a := range list {
		flat[a.QuestionID] = a.Value
		for childID, v := range a.ChildValues {
			flat[ChildKey(a.QuestionID, childID)] = v
		}
	}
	return flat
}

func (f Flat) strings(key string) []string {
	list, _ := f[key].AsStrings()
	return list
}

func (f Flat) text(key string) string {
	s, _ := f[key].AsText()
	return s
}

// Evaluate runs every rule and returns the failing ones in rule order.
func Evaluate(rules []Rule, flat Flat) []Conflict {
	var conflicts []Conflict
	for _, r := range rules {
		if ok, message := r.Check(flat); !ok {
			conflicts = append(conflicts, Conflict{RuleID: r.ID, Message: message})
		}
	}
	return conflicts
}

func containsAny(list []string, substrings ...string) bool {
	for _, item := range list {
		for _, sub := range substrings {
			if strings.Contains(item, sub) {
				return true
			}
		}
	}
	return false
}

var DiabetesInsulinConsistency = Rule{
	ID:          "diabetes_insulin_consistency",
	Description: "If diabetes medication includes Insulin, endocrine conditions should include diabetes",
	Check: func(flat Flat) (bool, string) {
		meds := flat.strings(ChildKey("diabetes_meds", "diabetes_med_types"))
		insulin := false
		for _, m := range meds {
			if m == "Insulin" {
				insulin = true
				break
			}
		}
		if insulin && !containsAny(flat.strings("endocrine_conditions"), "Diabetes", "Insulin") {
			return false, "Insulin selected in medications but no diabetes condition indicated. Please verify."
		}
		return true, ""
	},
}

var PregnancyGenderConsistency = Rule{
	ID:          "pregnancy_gender_consistency",
	Description: "A pregnancy can only be recorded when gender is not Male",
	Check: func(flat Flat) (bool, string) {
		if flat.text("gender") == "Male" && flat.text("pregnant") == "Yes" {
			return false, "Pregnancy recorded but gender is Male. Please verify."
		}
		return true, ""
	},
}

func Default() []Rule {
	return []Rule{DiabetesInsulinConsistency, PregnancyGenderConsistency}
}
