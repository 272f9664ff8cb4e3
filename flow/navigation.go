package flow

// moveLocked points the cursor at step and restarts the question timer.
func (e *Engine) moveLocked(step Step) {
	from := e.current
	e.current = step
	e.questionStart = e.now()
	e.generation++

	e.log.Debug().
		Str("from_phase", string(from.Phase)).
		Str("from_question", from.QuestionID).
		Str("to_phase", string(step.Phase)).
		Str("to_question", step.QuestionID).
		Int("index", step.Index).
		Msg("step changed")
}

func (e *Engine) nextLocked() bool {
	steps := e.stepsLocked()
	i := indexOf(steps, e.current)
	if i < 0 {
		e.log.Warn().Str("phase", string(e.current.Phase)).Str("question_id", e.current.QuestionID).Msg("current step not in flow, next ignored")
		return false
	}
	if i == len(steps)-1 {
		return false
	}
	e.moveLocked(steps[i+1])
	return true
}

// GoToStep moves the cursor to step without checking it against the flow.
func (e *Engine) GoToStep(step Step) bool {
	if !step.Phase.Valid() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.moveLocked(step)
	e.persistLocked()
	return true
}

// GoToNext moves to the following step. It does nothing on the last step or when
// the current step is no longer part of the flow.
func (e *Engine) GoToNext() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.nextLocked() {
		return false
	}
	e.persistLocked()
	return true
}

func (e *Engine) GoBack() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	steps := e.stepsLocked()
	i := indexOf(steps, e.current)
	if i <= 0 {
		if i < 0 {
			e.log.Warn().Str("phase", string(e.current.Phase)).Str("question_id", e.current.QuestionID).Msg("current step not in flow, back ignored")
		}
		return false
	}
	e.moveLocked(steps[i-1])
	e.persistLocked()
	return true
}

// SkipCurrent records a skip and advances. The existing answer is kept.
func (e *Engine) SkipCurrent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.emitLocked(EventSkipped, map[string]interface{}{
		"phase":       string(e.current.Phase),
		"question_id": e.current.QuestionID,
	})
	moved := e.nextLocked()
	e.persistLocked()
	return moved
}

func (e *Engine) GoToReview() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.moveLocked(ReviewStep)
	e.emitLocked(EventReviewAttempt, map[string]interface{}{
		"answered_count": e.store.Len(),
	})
	e.persistLocked()
}

// Continue is the Next button: it advances, or opens the review from the last step.
func (e *Engine) Continue() Step {
	e.mu.Lock()
	defer e.mu.Unlock()

	steps := e.stepsLocked()
	i := indexOf(steps, e.current)
	switch {
	case i >= 0 && i == len(steps)-1:
		e.moveLocked(ReviewStep)
		e.emitLocked(EventReviewAttempt, map[string]interface{}{
			"answered_count": e.store.Len(),
		})
	case i >= 0:
		e.moveLocked(steps[i+1])
	default:
		return e.current
	}
	e.persistLocked()
	return e.current
}

// GoToQuestionByID jumps to the first step bound to questionID, if the flow has one.
func (e *Engine) GoToQuestionByID(questionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.stepsLocked() {
		if s.QuestionID != "" && s.QuestionID == questionID {
			e.moveLocked(s)
			e.persistLocked()
			return true
		}
	}
	return false
}
