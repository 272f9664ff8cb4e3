package answers

import (
	"sort"
	"time"
)

// Answer is the full record for one question. It is always replaced as a whole.
type Answer struct {
	QuestionID  string            `json:"questionId"`
	Value       Value             `json:"value"`
	ChildValues map[string]Value  `json:"childValues,omitempty"`
	OtherValues map[string]string `json:"otherValues,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	TimeSpentMs int64             `json:"timeSpentMs"`
}

func (a Answer) Clone() Answer {
	c := a
	if a.ChildValues != nil {
		c.ChildValues = make(map[string]Value, len(a.ChildValues))
		for k, v := range a.ChildValues {
			c.ChildValues[k] = v
		}
	}
	if a.OtherValues != nil {
		c.OtherValues = make(map[string]string, len(a.OtherValues))
		for k, v := range a.OtherValues {
			c.OtherValues[k] = v
		}
	}
	return c
}

// Store keeps answers in first-answered order. It does no locking of its own.
type Store struct {
	entries map[string]Answer
	order   []string
}

func NewStore() *Store {
	return &Store{entries: make(map[string]Answer)}
}

func (s *Store) Set(a Answer) {
	if _, ok := s.entries[a.QuestionID]; !ok {
		s.order = append(s.order, a.QuestionID)
	}
	s.entries[a.QuestionID] = a.Clone()
}

func (s *Store) Get(id string) (Answer, bool) {
	a, ok := s.entries[id]
	if !ok {
		return Answer{}, false
	}
	return a.Clone(), true
}

func (s *Store) Has(id string) bool {
	_, ok := s.entries[id]
	return ok
}

func (s *Store) Len() int {
	return len(s.entries)
}

func (s *Store) All() []Answer {
	result := make([]Answer, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.entries[id].Clone())
	}
	return result
}

func (s *Store) Map() map[string]Answer {
	result := make(map[string]Answer, len(s.entries))
	for id, a := range s.entries {
		result[id] = a.Clone()
	}
	return result
}

func (s *Store) Reset() {
	s.entries = make(map[string]Answer)
	s.order = nil
}

// Restore replaces the content with persisted answers, ordered by timestamp then id.
func (s *Store) Restore(entries map[string]Answer) {
	s.Reset()
	list := make([]Answer, 0, len(entries))
	for id, a := range entries {
		a.QuestionID = id
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.Before(list[j].Timestamp)
		}
		return list[i].QuestionID < list[j].QuestionID
	})
	for _, a := range list {
		s.Set(a)
	}
}
