package answers

import (
	"medintake.com/intake/catalog"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindText
	KindNumber
	KindStrings
	KindMeasurement
	KindFiles
)

var kindNames = [...]string{"none", "bool", "text", "number", "strings", "measurement", "files"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Accepts reports whether a value of this kind may be recorded for a question
// of type t. KindNone is always accepted and stands for an explicitly cleared answer.
func (k Kind) Accepts(t catalog.QuestionType) bool {
	switch k {
	case KindNone:
		return true
	case KindBool:
		return t == catalog.TypeYesNo
	case KindText:
		return t == catalog.TypeDropdown || t == catalog.TypeDate || t == catalog.TypeText
	case KindNumber:
		return t == catalog.TypeNumeric
	case KindStrings:
		return t == catalog.TypeMultiSelect
	case KindMeasurement:
		return t == catalog.TypeHeight || t == catalog.TypeWeight
	case KindFiles:
		return t == catalog.TypeFileUpload
	}
	return false
}

type Measurement struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

type FileMeta struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	DocumentType string `json:"documentType,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Value is a recorded answer payload. The zero Value is KindNone.
type Value struct {
	kind  Kind
	b     bool
	s     string
	n     float64
	list  []string
	m     Measurement
	files []FileMeta
}

func None() Value {
	return Value{}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Text(s string) Value {
	return Value{kind: KindText, s: s}
}

func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

func Strings(ss []string) Value {
	return Value{kind: KindStrings, list: append([]string{}, ss...)}
}

func Measure(amount float64, unit string) Value {
	return Value{kind: KindMeasurement, m: Measurement{Amount: amount, Unit: unit}}
}

func Files(files []FileMeta) Value {
	return Value{kind: KindFiles, files: append([]FileMeta{}, files...)}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNone() bool {
	return v.kind == KindNone
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsText() (string, bool) {
	return v.s, v.kind == KindText
}

func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

func (v Value) AsStrings() ([]string, bool) {
	if v.kind != KindStrings {
		return nil, false
	}
	return append([]string{}, v.list...), true
}

func (v Value) AsMeasurement() (Measurement, bool) {
	return v.m, v.kind == KindMeasurement
}

func (v Value) AsFiles() ([]FileMeta, bool) {
	if v.kind != KindFiles {
		return nil, false
	}
	return append([]FileMeta{}, v.files...), true
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindText:
		return v.s == o.s
	case KindNumber:
		return v.n == o.n
	case KindStrings:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
	case KindMeasurement:
		return v.m == o.m
	case KindFiles:
		if len(v.files) != len(o.files) {
			return false
		}
		for i := range v.files {
			if v.files[i] != o.files[i] {
				return false
			}
		}
	}
	return true
}

// Truthy decides whether a parent answer reveals its conditional children.
// Negative dropdown answers ("No", "Prefer not to say") do not.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindText:
		s := strings.TrimSpace(v.s)
		return s != "" && !strings.EqualFold(s, "No") && !strings.EqualFold(s, "Prefer not to say")
	case KindNumber:
		return v.n != 0
	case KindStrings:
		return len(v.list) > 0
	case KindMeasurement:
		return v.m.Amount > 0
	case KindFiles:
		return len(v.files) > 0
	}
	return false
}

// Coerce adjusts a decoded value to the question type it belongs to. JSON
// cannot tell an empty file list from an empty option list.
func (v Value) Coerce(t catalog.QuestionType) Value {
	if v.kind == KindStrings && len(v.list) == 0 && t == catalog.TypeFileUpload {
		return Files(nil)
	}
	if v.kind == KindFiles && len(v.files) == 0 && t == catalog.TypeMultiSelect {
		return Strings(nil)
	}
	return v
}

// Interface returns the literal payload, used by JSON encoding and rule predicates.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindText:
		return v.s
	case KindNumber:
		return v.n
	case KindStrings:
		return v.list
	case KindMeasurement:
		return v.m
	case KindFiles:
		return v.files
	}
	return nil
}

func (v Value) String() string {
	raw, err := json.Marshal(v)
	if err != nil {
		return v.kind.String()
	}
	return string(raw)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a literal payload by its JSON shape.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = None()
		return nil
	}

	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '{':
		var m Measurement
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = Measure(m.Amount, m.Unit)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if len(raw) > 0 && bytes.HasPrefix(bytes.TrimSpace(raw[0]), []byte("{")) {
			var files []FileMeta
			if err := json.Unmarshal(data, &files); err != nil {
				return err
			}
			*v = Files(files)
			return nil
		}
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*v = Strings(list)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported answer value %s: %w", data, err)
		}
		*v = Number(n)
	}
	return nil
}
