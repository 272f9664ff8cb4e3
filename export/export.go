package export

import (
	"medintake.com/intake/answers"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	SummaryTitle = "Medical Intake Summary"
	// ISO 8601 with milliseconds, always rendered in UTC
	TimestampLayout = "2006-01-02T15:04:05.000Z"
	EmptyValue      = "—"
)

var Header = []string{"Question ID", "Value", "Child Values", "Other Values", "Timestamp", "Time Spent (ms)"}

func mustJSON(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(raw)
}

func childJSON(children map[string]answers.Value) string {
	if children == nil {
		return "{}"
	}
	return mustJSON(children)
}

func otherJSON(others map[string]string) string {
	if others == nil {
		return "{}"
	}
	return mustJSON(others)
}

// CSV renders one row per answer, in the given order, with RFC 4180 quoting.
func CSV(list []answers.Answer) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return "", err
	}
	for _, a := range list {
		row := []string{
			a.QuestionID,
			mustJSON(a.Value),
			childJSON(a.ChildValues),
			otherJSON(a.OtherValues),
			FormatTimestamp(a.Timestamp),
			strconv.FormatInt(a.TimeSpentMs, 10),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("writing row %s: %w", a.QuestionID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}

// Summary is the plain text copy of the answers, children indented under their parent.
func Summary(list []answers.Answer) string {
	lines := []string{SummaryTitle, strings.Repeat("=", 30), ""}
	for _, a := range list {
		lines = append(lines, fmt.Sprintf("%s: %s", a.QuestionID, mustJSON(a.Value)))

		keys := make([]string, 0, len(a.ChildValues))
		for k := range a.ChildValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  - %s: %s", k, mustJSON(a.ChildValues[k])))
		}
	}
	return strings.Join(lines, "\n")
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FormatValue renders an answer for the review screen. Free text "Other" entries
// are appended to list answers.
func FormatValue(v answers.Value, otherValues map[string]string) string {
	switch v.Kind() {
	case answers.KindBool:
		b, _ := v.AsBool()
		if b {
			return "Yes"
		}
		return "No"
	case answers.KindText:
		s, _ := v.AsText()
		return s
	case answers.KindNumber:
		n, _ := v.AsNumber()
		return formatNumber(n)
	case answers.KindStrings:
		list, _ := v.AsStrings()
		items := EmptyValue
		if len(list) > 0 {
			items = strings.Join(list, ", ")
		}
		others := otherEntries(otherValues)
		if len(others) == 0 {
			return items
		}
		if items == EmptyValue {
			return "Other: " + strings.Join(others, ", ")
		}
		return items + ", Other: " + strings.Join(others, ", ")
	case answers.KindMeasurement:
		m, _ := v.AsMeasurement()
		if m.Amount == 0 {
			return EmptyValue
		}
		return formatNumber(m.Amount) + " " + m.Unit
	case answers.KindFiles:
		files, _ := v.AsFiles()
		if len(files) == 0 {
			return EmptyValue
		}
		return fmt.Sprintf("%d file(s) uploaded", len(files))
	}
	return EmptyValue
}

func otherEntries(otherValues map[string]string) []string {
	keys := make([]string, 0, len(otherValues))
	for k, v := range otherValues {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]string, len(keys))
	for i, k := range keys {
		entries[i] = otherValues[k]
	}
	return entries
}
