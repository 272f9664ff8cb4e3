package answers

import (
	"medintake.com/intake/catalog"
	"math"
	"strconv"
	"strings"
)

const (
	NumericMin = 0
	NumericMax = 300
)

type bounds struct {
	min, max float64
}

var measurementRanges = map[catalog.QuestionType]map[string]bounds{
	catalog.TypeHeight: {
		"CM":     {50, 250},
		"Inches": {20, 100},
	},
	catalog.TypeWeight: {
		"KG":  {20, 300},
		"LBS": {45, 660},
	},
}

func parseFloat(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// ParseNumeric turns raw numeric input into a Number. Unparseable or out of
// range input returns ok=false and must not be recorded.
func ParseNumeric(text string, min, max float64) (Value, bool) {
	n, ok := parseFloat(text)
	if !ok || n < min || n > max {
		return None(), false
	}
	return Number(n), true
}

// ParseMeasurement parses height or weight input in the given unit.
func ParseMeasurement(t catalog.QuestionType, text, unit string) (Value, bool) {
	r, ok := measurementRanges[t][unit]
	if !ok {
		return None(), false
	}
	n, ok := parseFloat(text)
	if !ok || n < r.min || n > r.max {
		return None(), false
	}
	return Measure(n, unit), true
}
