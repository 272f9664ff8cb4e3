package answers

import (
	"medintake.com/intake/catalog"
	"encoding/json"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestValueJSON(t *testing.T) {
	cases := []struct {
		name    string
		value   Value
		encoded string
	}{
		{"none", None(), `null`},
		{"bool", Bool(false), `false`},
		{"text", Text("Female"), `"Female"`},
		{"number", Number(72), `72`},
		{"strings", Strings([]string{"Asthma", "COPD"}), `["Asthma","COPD"]`},
		{"empty strings", Strings(nil), `[]`},
		{"measurement", Measure(180, "CM"), `{"amount":180,"unit":"CM"}`},
		{"files", Files([]FileMeta{{ID: "f1", Name: "ecg.pdf", Type: "application/pdf", Size: 1024, DocumentType: "ECG"}}),
			`[{"id":"f1","name":"ecg.pdf","type":"application/pdf","size":1024,"documentType":"ECG"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.value)
			require.NoError(t, err)
			require.JSONEq(t, tc.encoded, string(raw))

			var decoded Value
			require.NoError(t, json.Unmarshal(raw, &decoded))
			require.True(t, tc.value.Equal(decoded), "decoded %s", decoded)
		})
	}
}

func TestValueUnmarshalRejectsGarbage(t *testing.T) {
	var v Value
	require.Error(t, json.Unmarshal([]byte(`[1, 2]`), &v))
	require.Error(t, json.Unmarshal([]byte(`{"amount": "tall"}`), &v))
}

func TestAccessors(t *testing.T) {
	b, ok := Bool(true).AsBool()
	require.True(t, ok)
	require.True(t, b)

	_, ok = Text("x").AsBool()
	require.False(t, ok)

	list := []string{"a"}
	v := Strings(list)
	list[0] = "changed"
	got, ok := v.AsStrings()
	require.True(t, ok)
	require.Equal(t, []string{"a"}, got)

	got[0] = "mutated"
	again, _ := v.AsStrings()
	require.Equal(t, []string{"a"}, again)

	m, ok := Measure(70, "KG").AsMeasurement()
	require.True(t, ok)
	require.Equal(t, Measurement{Amount: 70, Unit: "KG"}, m)

	_, ok = Number(1).AsFiles()
	require.False(t, ok)
	require.True(t, None().IsNone())
	require.Equal(t, "measurement", KindMeasurement.String())
}

func TestEqual(t *testing.T) {
	require.True(t, Strings([]string{"a", "b"}).Equal(Strings([]string{"a", "b"})))
	require.False(t, Strings([]string{"a", "b"}).Equal(Strings([]string{"b", "a"})))
	require.False(t, Text("1").Equal(Number(1)))
	require.False(t, Strings(nil).Equal(Files(nil)))
	require.True(t, None().Equal(Value{}))
}

func TestTruthy(t *testing.T) {
	truthy := []Value{Bool(true), Text("Yes"), Number(3), Strings([]string{"x"}), Measure(1, "CM"), Files([]FileMeta{{ID: "1"}})}
	for _, v := range truthy {
		require.True(t, v.Truthy(), v.String())
	}
	falsy := []Value{None(), Bool(false), Text(""), Text("No"), Text("prefer not to say"), Number(0), Strings(nil), Measure(0, "CM"), Files(nil)}
	for _, v := range falsy {
		require.False(t, v.Truthy(), v.String())
	}
}

func TestKindAccepts(t *testing.T) {
	require.True(t, KindBool.Accepts(catalog.TypeYesNo))
	require.False(t, KindBool.Accepts(catalog.TypeDropdown))
	require.True(t, KindText.Accepts(catalog.TypeDate))
	require.True(t, KindNumber.Accepts(catalog.TypeNumeric))
	require.False(t, KindText.Accepts(catalog.TypeNumeric))
	require.True(t, KindStrings.Accepts(catalog.TypeMultiSelect))
	require.True(t, KindMeasurement.Accepts(catalog.TypeWeight))
	require.True(t, KindFiles.Accepts(catalog.TypeFileUpload))
	require.False(t, KindFiles.Accepts(catalog.TypeMultiSelect))
	for _, qt := range []catalog.QuestionType{catalog.TypeYesNo, catalog.TypeFileUpload, catalog.TypeText} {
		require.True(t, KindNone.Accepts(qt))
	}
}

func TestCoerce(t *testing.T) {
	var decoded Value
	require.NoError(t, json.Unmarshal([]byte(`[]`), &decoded))
	require.Equal(t, KindStrings, decoded.Kind())
	require.Equal(t, KindFiles, decoded.Coerce(catalog.TypeFileUpload).Kind())
	require.Equal(t, KindStrings, decoded.Coerce(catalog.TypeMultiSelect).Kind())
	require.Equal(t, KindStrings, Files(nil).Coerce(catalog.TypeMultiSelect).Kind())
}

func TestParseNumeric(t *testing.T) {
	v, ok := ParseNumeric(" 72 ", NumericMin, NumericMax)
	require.True(t, ok)
	require.True(t, Number(72).Equal(v))

	for _, bad := range []string{"", "abc", "7O", "301", "-1", "NaN", "Inf"} {
		v, ok := ParseNumeric(bad, NumericMin, NumericMax)
		require.False(t, ok, bad)
		require.True(t, v.IsNone(), bad)
	}
}

func TestParseMeasurement(t *testing.T) {
	v, ok := ParseMeasurement(catalog.TypeHeight, "180", "CM")
	require.True(t, ok)
	require.True(t, Measure(180, "CM").Equal(v))

	_, ok = ParseMeasurement(catalog.TypeHeight, "180", "Inches")
	require.False(t, ok)
	_, ok = ParseMeasurement(catalog.TypeWeight, "660", "LBS")
	require.True(t, ok)
	_, ok = ParseMeasurement(catalog.TypeWeight, "19", "KG")
	require.False(t, ok)
	_, ok = ParseMeasurement(catalog.TypeWeight, "70", "stone")
	require.False(t, ok)
	_, ok = ParseMeasurement(catalog.TypeNumeric, "70", "KG")
	require.False(t, ok)
}
