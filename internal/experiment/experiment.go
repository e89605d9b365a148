package experiment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/storage"
)

// Experiment owns the visitor's variant assignment and the
// append-only event log. It is an explicitly constructed service:
// callers create one per experiment (and per test harness) instead of
// sharing an ambient singleton.
//
// All mutation is serialized behind one mutex; event append re-reads
// the persisted log before writing so concurrent writers to the same
// store lose at most their own write (last write wins).
type Experiment struct {
	cfg        Config
	kv         storage.KV
	log        *zap.Logger
	draw       func() float64
	forwarders []Forwarder

	mu       sync.Mutex
	current  string
	degraded bool    // storage gave up; keep the log in memory for this session
	events   []Event // authoritative only while degraded
}

type Option func(*Experiment)

func WithLogger(log *zap.Logger) Option {
	return func(e *Experiment) { e.log = log }
}

// WithDraw replaces the random source used by Assign. Tests pin it to
// make the weighted draw deterministic.
func WithDraw(draw func() float64) Option {
	return func(e *Experiment) { e.draw = draw }
}

func WithForwarders(f ...Forwarder) Option {
	return func(e *Experiment) { e.forwarders = append(e.forwarders, f...) }
}

// New constructs the experiment and brings it to its active state:
// an assignment restored from storage when one exists, otherwise a
// fresh weighted draw persisted for subsequent loads. Persistence
// failure is not fatal; the visitor keeps the drawn variant for this
// session only.
func New(cfg Config, kv storage.KV, opts ...Option) (*Experiment, error) {
	if len(cfg.Variants) == 0 {
		return nil, errors.New("experiment needs at least one variant")
	}
	for _, v := range cfg.Variants {
		if v.Weight <= 0 {
			return nil, fmt.Errorf("variant %q has non-positive weight %v", v.ID, v.Weight)
		}
	}

	e := &Experiment{
		cfg:  cfg,
		kv:   kv,
		log:  zap.NewNop(),
		draw: rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.activate()
	return e, nil
}

// activate performs the Uninitialized -> Active transition.
func (e *Experiment) activate() {
	stored, err := e.kv.Get(e.cfg.variantKey())
	if err == nil {
		if _, ok := e.cfg.Find(stored); ok {
			e.current = stored
			return
		}
		e.log.Warn("stored assignment no longer in variant set, redrawing",
			zap.String("variation", stored))
	} else if !errors.Is(err, storage.ErrNotFound) {
		e.log.Warn("failed to read stored assignment", zap.Error(err))
	}

	e.current = e.Assign()
	if err := e.kv.Set(e.cfg.variantKey(), e.current); err != nil {
		e.log.Warn("failed to persist assignment, variant is session-only", zap.Error(err))
	}
}

// Assign performs a weighted random selection over the variant set:
// a threshold in [0, totalWeight) has each weight subtracted in
// definition order until it crosses zero. If floating-point drift
// leaves no selection, the first variant wins; that fallback is
// deliberate policy, not a bug.
func (e *Experiment) Assign() string {
	total := 0.0
	for _, v := range e.cfg.Variants {
		total += v.Weight
	}

	r := e.draw() * total
	for _, v := range e.cfg.Variants {
		r -= v.Weight
		if r <= 0 {
			return v.ID
		}
	}
	return e.cfg.Variants[0].ID
}

// ActiveVariant returns the variant bound to this visitor.
func (e *Experiment) ActiveVariant() Variant {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, _ := e.cfg.Find(e.current)
	return v
}

func (e *Experiment) Config() Config { return e.cfg }

// RecordEvent appends one event to the log, persists the full log,
// and hands the event to every registered forwarder. Forwarding is
// fire-and-forget: a panicking or failing collaborator never reaches
// the caller.
func (e *Experiment) RecordEvent(evCtx EventContext, eventType string, extra map[string]string) Event {
	e.mu.Lock()
	ev := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		VariantID: e.current,
		EventType: eventType,
		URL:       evCtx.URL,
		UserAgent: evCtx.UserAgent,
		VisitorID: evCtx.VisitorID,
		Extra:     extra,
	}
	e.appendLocked(ev)
	e.mu.Unlock()

	for _, f := range e.forwarders {
		e.forward(f, ev)
	}
	return ev
}

// RecordPageView logs the view event for one page load.
func (e *Experiment) RecordPageView(evCtx EventContext) Event {
	return e.RecordEvent(evCtx, EventPageView, nil)
}

func (e *Experiment) forward(f Forwarder, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("analytics forwarder panicked", zap.Any("panic", r))
		}
	}()
	f.Record(ev)
}

// appendLocked reads the latest persisted log, appends, and writes it
// back. On a storage failure the log switches to memory-only for the
// rest of the session.
func (e *Experiment) appendLocked(ev Event) {
	events := e.loadLocked()
	events = append(events, ev)
	e.events = events

	if e.degraded {
		return
	}

	data, err := json.Marshal(events)
	if err == nil {
		err = e.kv.Set(e.cfg.eventsKey(), string(data))
	}
	if err != nil {
		e.degraded = true
		e.log.Warn("could not save analytics data, keeping log in memory", zap.Error(err))
	}
}

func (e *Experiment) loadLocked() []Event {
	if e.degraded {
		return e.events
	}

	raw, err := e.kv.Get(e.cfg.eventsKey())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		e.log.Warn("failed to read event log", zap.Error(err))
		return e.events
	}

	var events []Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		e.log.Warn("corrupt event log, starting over", zap.Error(err))
		return e.events
	}
	return events
}

// Events returns the full ordered event log.
func (e *Experiment) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	events := e.loadLocked()
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// SetVariant overrides the assignment with the given variant. An
// unknown id is silently ignored. On success the change is persisted
// and logged as a manual_variant_change event.
func (e *Experiment) SetVariant(evCtx EventContext, id string) {
	e.mu.Lock()
	if _, ok := e.cfg.Find(id); !ok {
		e.mu.Unlock()
		e.log.Debug("ignoring unknown variant", zap.String("variation", id))
		return
	}
	e.current = id
	if err := e.kv.Set(e.cfg.variantKey(), id); err != nil {
		e.log.Warn("failed to persist manual assignment", zap.Error(err))
	}
	e.mu.Unlock()

	e.RecordEvent(evCtx, EventManualChange, map[string]string{"newVariation": id})
}

// Reset clears the persisted assignment and event log, then re-runs
// initialization: a fresh draw and a fresh page-view event.
func (e *Experiment) Reset(evCtx EventContext) {
	e.mu.Lock()
	if err := e.kv.Remove(e.cfg.variantKey()); err != nil {
		e.log.Warn("failed to clear assignment", zap.Error(err))
	}
	if err := e.kv.Remove(e.cfg.eventsKey()); err != nil {
		e.log.Warn("failed to clear event log", zap.Error(err))
	}
	e.events = nil
	e.degraded = false
	e.activate()
	e.mu.Unlock()

	e.RecordPageView(evCtx)
}
