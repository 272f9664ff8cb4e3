package answers

import (
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func answerIDs(list []Answer) []string {
	var ids []string
	for _, a := range list {
		ids = append(ids, a.QuestionID)
	}
	return ids
}

func TestStoreSetOverwritesWholeEntry(t *testing.T) {
	s := NewStore()
	s.Set(Answer{
		QuestionID:  "blood_thinners",
		Value:       Bool(true),
		ChildValues: map[string]Value{"blood_thinner_meds": Strings([]string{"Warfarin"})},
		OtherValues: map[string]string{"blood_thinner_meds": "custom"},
	})
	s.Set(Answer{QuestionID: "blood_thinners", Value: Bool(false)})

	a, ok := s.Get("blood_thinners")
	require.True(t, ok)
	require.True(t, Bool(false).Equal(a.Value))
	require.Empty(t, a.ChildValues)
	require.Empty(t, a.OtherValues)
	require.Equal(t, 1, s.Len())
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore()
	children := map[string]Value{"due_date": Text("2026-01-01")}
	s.Set(Answer{QuestionID: "pregnant", Value: Text("Yes"), ChildValues: children})
	children["due_date"] = Text("changed")

	a, _ := s.Get("pregnant")
	require.True(t, Text("2026-01-01").Equal(a.ChildValues["due_date"]))

	a.ChildValues["due_date"] = Text("mutated")
	again, _ := s.Get("pregnant")
	require.True(t, Text("2026-01-01").Equal(again.ChildValues["due_date"]))
}

func TestStoreOrderAndReset(t *testing.T) {
	s := NewStore()
	s.Set(Answer{QuestionID: "gender", Value: Text("Male")})
	s.Set(Answer{QuestionID: "age_group", Value: Text("1980-1989")})
	s.Set(Answer{QuestionID: "gender", Value: Text("Female")})

	require.Equal(t, []string{"gender", "age_group"}, answerIDs(s.All()))
	require.True(t, s.Has("gender"))

	s.Reset()
	require.Equal(t, 0, s.Len())
	require.Empty(t, s.All())
	_, ok := s.Get("gender")
	require.False(t, ok)
}

func TestStoreRestore(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	persisted := map[string]Answer{
		"weight":    {Value: Measure(70, "KG"), Timestamp: base.Add(2 * time.Second)},
		"gender":    {Value: Text("Other"), Timestamp: base},
		"age_group": {Value: Text("1990-1999"), Timestamp: base},
	}

	s := NewStore()
	s.Set(Answer{QuestionID: "stale"})
	s.Restore(persisted)

	if diff := cmp.Diff([]string{"age_group", "gender", "weight"}, answerIDs(s.All())); diff != "" {
		t.Errorf("restore order mismatch (-want +got):\n%s", diff)
	}
	require.False(t, s.Has("stale"))
	require.Len(t, s.Map(), 3)
}
