package flow

import (
	"medintake.com/intake/answers"
	"medintake.com/intake/catalog"
	"medintake.com/intake/utils"
	"fmt"
	"time"
)

// SetAnswer replaces the whole answer of a question. Child and other values are
// taken as given; callers merge them beforehand. A yes-no answer of No drops
// them and schedules an auto-advance.
func (e *Engine) SetAnswer(questionID string, value answers.Value, childValues map[string]answers.Value, otherValues map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.catalog.Question(questionID)
	if !ok {
		e.log.Warn().Str("question_id", questionID).Msg("answer for unknown question ignored")
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if !value.Kind().Accepts(q.Type) {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrValueMismatch, questionID, q.Type, value.Kind())
	}

	children := e.acceptedChildrenLocked(q, childValues)
	var others map[string]string
	if len(otherValues) > 0 {
		others = make(map[string]string, len(otherValues))
		for k, v := range otherValues {
			others[k] = v
		}
	}

	declined := false
	if b, isBool := value.AsBool(); isBool && !b && q.Type == catalog.TypeYesNo {
		declined = true
		children, others = nil, nil
	}

	// every Yes that reveals follow-ups is logged, before the answer itself
	if q.Type == catalog.TypeYesNo && value.Truthy() {
		if visible := q.VisibleChildren(e.gender); len(visible) > 0 {
			e.emitLocked(EventConditionalOpened, map[string]interface{}{
				"question_id":    questionID,
				"children_count": len(visible),
			})
		}
	}

	now := e.now()
	spent := now.Sub(e.questionStart).Milliseconds()
	if spent < 0 {
		spent = 0
	}

	e.store.Set(answers.Answer{
		QuestionID:  questionID,
		Value:       value,
		ChildValues: children,
		OtherValues: others,
		Timestamp:   now,
		TimeSpentMs: spent,
	})
	e.questionStart = now

	switch questionID {
	case catalog.GenderQuestionID:
		text, _ := value.AsText()
		e.gender = catalog.ParseGender(text)
	case catalog.GatekeeperQuestionID:
		if value.IsNone() {
			e.takesMeds = nil
		} else {
			takes, _ := value.AsBool()
			e.takesMeds = &takes
		}
	}

	e.emitLocked(EventAnswered, map[string]interface{}{
		"question_id":             questionID,
		"answer":                  value,
		"time_on_question_ms":     spent,
		"revealed_children_count": len(children),
	})

	e.persistLocked()

	if declined {
		e.scheduleAutoAdvanceLocked()
	}
	return nil
}

// acceptedChildrenLocked drops child values that do not belong to the question
// or do not fit the child's type.
func (e *Engine) acceptedChildrenLocked(q *catalog.Question, childValues map[string]answers.Value) map[string]answers.Value {
	if len(childValues) == 0 {
		return nil
	}
	children := make(map[string]answers.Value, len(childValues))
	for id, v := range childValues {
		child, ok := q.Child(id)
		if !ok {
			e.log.Warn().Str("question_id", q.ID).Str("child_id", id).Msg("dropping value for unknown child")
			continue
		}
		if !v.Kind().Accepts(child.Type) {
			e.log.Warn().
				Str("question_id", q.ID).
				Str("child_id", id).
				Str("kind", v.Kind().String()).
				Msg("dropping child value of the wrong type")
			continue
		}
		children[id] = v
	}
	return children
}

func (e *Engine) scheduleAutoAdvanceLocked() {
	if e.delay < 0 || e.closed {
		return
	}
	generation := e.generation
	e.timerSeq++
	id := e.timerSeq
	e.timers[id] = time.AfterFunc(e.delay, func() {
		e.autoAdvance(id, generation)
	})
}

func (e *Engine) autoAdvance(timerID, generation uint64) {
	var err error
	defer func() {
		if err != nil {
			e.log.Error().Err(err).Msg("auto-advance failed")
		}
	}()
	defer utils.RecoverWithError(&err)

	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.timers, timerID)
	if e.closed {
		return
	}
	if e.cancel && generation != e.generation {
		e.log.Debug().Msg("position changed since scheduling, auto-advance dropped")
		return
	}
	if e.nextLocked() {
		e.persistLocked()
	}
}

// SetHealthCategories stores the selection in the order given. Unknown and
// repeated ids are dropped.
func (e *Engine) SetHealthCategories(ids []string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selected = e.cleanCategories(ids)
	e.emitLocked(EventCategoriesSelected, map[string]interface{}{
		"categories": append([]string(nil), e.selected...),
	})
	e.persistLocked()
	return append([]string(nil), e.selected...)
}

func (e *Engine) cleanCategories(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var result []string
	for _, id := range ids {
		if _, ok := e.catalog.Category(id); !ok {
			e.log.Warn().Str("category", id).Msg("unknown health category ignored")
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
