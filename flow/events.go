package flow

import (
	"medintake.com/intake/export"
)

func (e *Engine) emitLocked(name string, data map[string]interface{}) {
	event := Event{Name: name, Data: data, Timestamp: e.now()}
	e.events = append(e.events, event)
	if e.sink != nil {
		e.sink.Publish(e.sessionID, event)
	}
}

// LogEvent appends an analytics event to the session. data is copied.
func (e *Engine) LogEvent(name string, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	copied := make(map[string]interface{}, len(data))
	for k, v := range data {
		copied[k] = v
	}
	e.emitLocked(name, copied)
	e.persistLocked()
}

func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

// ExportAnswers renders all answers as CSV.
func (e *Engine) ExportAnswers() (string, error) {
	e.mu.Lock()
	list := e.store.All()
	e.mu.Unlock()

	return export.CSV(list)
}

func (e *Engine) Summary() string {
	e.mu.Lock()
	list := e.store.All()
	e.mu.Unlock()

	return export.Summary(list)
}
