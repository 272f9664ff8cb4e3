package flow

import (
	"medintake.com/intake/answers"
	"medintake.com/intake/catalog"
	"medintake.com/intake/logger"
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"sync"
	"time"
)

const (
	DefaultAutoAdvanceDelay = 300 * time.Millisecond
	persistTimeout          = 5 * time.Second
)

type Options struct {
	SessionID string
	// defaults to catalog.Default()
	Catalog   *catalog.Catalog
	Persister Persister
	Events    EventSink
	// zero means DefaultAutoAdvanceDelay, negative disables auto-advance
	AutoAdvanceDelay time.Duration
	// drop a pending auto-advance when the position moved after it was scheduled
	CancelStaleAutoAdvance bool
	Now                    func() time.Time
	Logger                 *zerolog.Logger
}

// Engine owns the answers and the navigation state of one intake session.
// All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	sessionID string
	catalog   *catalog.Catalog
	persister Persister
	sink      EventSink
	delay     time.Duration
	cancel    bool
	now       func() time.Time
	log       zerolog.Logger

	store         *answers.Store
	current       Step
	gender        catalog.Gender
	selected      []string
	takesMeds     *bool
	startTime     time.Time
	questionStart time.Time
	events        []Event

	// bumped on every cursor move
	generation uint64
	timers     map[uint64]*time.Timer
	timerSeq   uint64
	closed     bool
}

// New creates an engine and restores the persisted session if there is one.
// A missing, unreadable or outdated record starts a fresh session.
func New(ctx context.Context, opts Options) (*Engine, error) {
	c := opts.Catalog
	if c == nil {
		var err error
		if c, err = catalog.Default(); err != nil {
			return nil, fmt.Errorf("loading default catalog: %w", err)
		}
	}

	log := logger.NewLogger("flow")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	log = log.With().Str("session_id", opts.SessionID).Logger()

	e := &Engine{
		sessionID: opts.SessionID,
		catalog:   c,
		persister: opts.Persister,
		sink:      opts.Events,
		delay:     opts.AutoAdvanceDelay,
		cancel:    opts.CancelStaleAutoAdvance,
		now:       opts.Now,
		log:       log,
		store:     answers.NewStore(),
		timers:    make(map[uint64]*time.Timer),
	}
	if e.delay == 0 {
		e.delay = DefaultAutoAdvanceDelay
	}
	if e.now == nil {
		e.now = time.Now
	}

	e.resetLocked()
	if e.persister == nil {
		return e, nil
	}

	state, err := e.persister.Load(ctx, e.sessionID)
	switch {
	case errors.Is(err, ErrStateNotFound):
		e.log.Debug().Msg("no persisted state, starting fresh")
	case err != nil:
		e.log.Error().Err(err).Msg("unable to load persisted state, starting fresh")
	case state.CatalogFingerprint != c.Fingerprint():
		e.log.Warn().
			Str("persisted", state.CatalogFingerprint).
			Str("current", c.Fingerprint()).
			Msg("catalog changed since the session was saved, starting fresh")
	default:
		e.restoreLocked(state)
	}
	return e, nil
}

func (e *Engine) SessionID() string {
	return e.sessionID
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Close stops pending auto-advance timers. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = make(map[uint64]*time.Timer)
	e.closed = true
}

// Reset clears answers, selections, events and the cursor in one step.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	e.log.Info().Msg("intake reset")
	e.persistLocked()
}

func (e *Engine) resetLocked() {
	now := e.now()
	e.store.Reset()
	e.gender = catalog.GenderUnset
	e.selected = nil
	e.takesMeds = nil
	e.startTime = now
	e.questionStart = now
	e.events = nil
	e.generation++

	e.current = Step{Phase: PhaseDemographics}
	if steps := e.stepsLocked(); len(steps) > 0 {
		e.current = steps[0]
	}
}

func (e *Engine) restoreLocked(state *State) {
	restored := make(map[string]answers.Answer, len(state.Answers))
	for id, a := range state.Answers {
		q, ok := e.catalog.Question(id)
		if !ok {
			e.log.Warn().Str("question_id", id).Msg("dropping persisted answer for unknown question")
			continue
		}
		a.Value = a.Value.Coerce(q.Type)
		for childID, v := range a.ChildValues {
			if child, ok := q.Child(childID); ok {
				a.ChildValues[childID] = v.Coerce(child.Type)
			}
		}
		restored[id] = a
	}
	e.store.Restore(restored)

	e.gender = state.Gender
	e.selected = e.cleanCategories(state.SelectedHealthCategories)
	e.takesMeds = state.TakesRegularMedication
	e.startTime = state.StartTime
	e.events = append([]Event(nil), state.AnalyticsEvents...)
	e.questionStart = e.now()

	if state.CurrentStep.Phase.Valid() {
		e.current = state.CurrentStep
	}
	e.log.Info().
		Int("answers", e.store.Len()).
		Str("phase", string(e.current.Phase)).
		Msg("restored persisted state")
}

func (e *Engine) snapshotLocked() *State {
	var takesMeds *bool
	if e.takesMeds != nil {
		v := *e.takesMeds
		takesMeds = &v
	}
	return &State{
		Answers:                  e.store.Map(),
		CurrentStep:              e.current,
		Gender:                   e.gender,
		SelectedHealthCategories: append([]string(nil), e.selected...),
		TakesRegularMedication:   takesMeds,
		StartTime:                e.startTime,
		AnalyticsEvents:          append([]Event(nil), e.events...),
		CatalogFingerprint:       e.catalog.Fingerprint(),
	}
}

// Snapshot returns a copy of the persisted state.
func (e *Engine) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) persistLocked() {
	if e.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := e.persister.Save(ctx, e.sessionID, e.snapshotLocked()); err != nil {
		e.log.Error().Err(err).Msg("unable to persist state")
	}
}
