package experiment_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/storage"
)

var testCtx = experiment.EventContext{URL: "https://example.com/", UserAgent: "test-agent", VisitorID: "v-1"}

func twoVariantConfig() experiment.Config {
	return experiment.Config{
		Name:     "test",
		Baseline: "Hello",
		Variants: []experiment.Variant{
			{ID: "a", DisplayText: "Headline A", Weight: 1},
			{ID: "b", DisplayText: "Headline B", Weight: 1},
		},
	}
}

func newExperiment(t *testing.T, cfg experiment.Config, kv storage.KV, opts ...experiment.Option) *experiment.Experiment {
	t.Helper()
	exp, err := experiment.New(cfg, kv, opts...)
	if err != nil {
		t.Fatalf("failed to create experiment: %v", err)
	}
	return exp
}

func TestNew_PinnedDrawAssignsDeterministically(t *testing.T) {
	kv := storage.NewMemoryKV()

	// Midpoint draw over two equal weights: threshold = 0.5*2 = 1.0,
	// first variant's weight brings it to exactly zero, so "a" wins.
	exp := newExperiment(t, twoVariantConfig(), kv,
		experiment.WithDraw(func() float64 { return 0.5 }))

	if got := exp.ActiveVariant().ID; got != "a" {
		t.Errorf("expected pinned draw to assign 'a', got %q", got)
	}

	exp.RecordPageView(testCtx)
	events := exp.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != experiment.EventPageView {
		t.Errorf("expected page_view, got %q", events[0].EventType)
	}
	if events[0].VariantID != "a" {
		t.Errorf("event attributed to %q, expected 'a'", events[0].VariantID)
	}
}

func TestNew_RestoresStoredAssignment(t *testing.T) {
	kv := storage.NewMemoryKV()

	first := newExperiment(t, twoVariantConfig(), kv)
	want := first.ActiveVariant().ID

	// A second load with a draw pinned to the other variant must
	// still restore the persisted assignment.
	for i := 0; i < 5; i++ {
		exp := newExperiment(t, twoVariantConfig(), kv,
			experiment.WithDraw(func() float64 {
				t.Error("draw called despite stored assignment")
				return 0
			}))
		if got := exp.ActiveVariant().ID; got != want {
			t.Errorf("load %d: expected stable assignment %q, got %q", i, want, got)
		}
	}
}

func TestAssign_UnderflowFallsBackToFirstVariant(t *testing.T) {
	// 0.1+0.2 accumulates upward in binary floating point, so a draw
	// of 1.0 leaves the threshold a hair above zero after subtracting
	// every weight. The loop selects nothing and the documented
	// fallback hands the draw to the first variant.
	cfg := experiment.Config{
		Name: "drift",
		Variants: []experiment.Variant{
			{ID: "a", DisplayText: "A", Weight: 0.1},
			{ID: "b", DisplayText: "B", Weight: 0.2},
		},
	}

	exp := newExperiment(t, cfg, storage.NewMemoryKV(),
		experiment.WithDraw(func() float64 { return 1.0 }))

	if got := exp.ActiveVariant().ID; got != "a" {
		t.Errorf("expected underflow fallback to 'a', got %q", got)
	}
}

func TestAssign_ConvergesToWeightRatios(t *testing.T) {
	cfg := experiment.Config{
		Name: "weights",
		Variants: []experiment.Variant{
			{ID: "heavy", DisplayText: "H", Weight: 3},
			{ID: "light", DisplayText: "L", Weight: 1},
		},
	}

	rng := rand.New(rand.NewSource(42))
	exp := newExperiment(t, cfg, storage.NewMemoryKV(),
		experiment.WithDraw(rng.Float64))

	const trials = 20000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		counts[exp.Assign()]++
	}

	got := float64(counts["heavy"]) / float64(trials)
	if math.Abs(got-0.75) > 0.02 {
		t.Errorf("heavy variant frequency %.3f, expected ~0.75", got)
	}
}

func TestRecordEvent_PreservesOrderAndAttribution(t *testing.T) {
	kv := storage.NewMemoryKV()
	exp := newExperiment(t, twoVariantConfig(), kv,
		experiment.WithDraw(func() float64 { return 0 }))

	exp.RecordPageView(testCtx)
	exp.RecordEvent(testCtx, experiment.EventFormSubmission, map[string]string{"form_type": "contact-form"})
	exp.RecordPageView(testCtx)

	events := exp.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	wantTypes := []string{
		experiment.EventPageView,
		experiment.EventFormSubmission,
		experiment.EventPageView,
	}
	for i, want := range wantTypes {
		if events[i].EventType != want {
			t.Errorf("event %d: expected %q, got %q", i, want, events[i].EventType)
		}
		if events[i].VariantID != "a" {
			t.Errorf("event %d attributed to %q, expected 'a'", i, events[i].VariantID)
		}
		if events[i].VisitorID != "v-1" {
			t.Errorf("event %d carries visitor %q, expected 'v-1'", i, events[i].VisitorID)
		}
	}
	if events[1].Extra["form_type"] != "contact-form" {
		t.Errorf("extra fields not preserved: %v", events[1].Extra)
	}
}

func TestSetVariant_UnknownIDIsNoOp(t *testing.T) {
	kv := storage.NewMemoryKV()
	exp := newExperiment(t, twoVariantConfig(), kv,
		experiment.WithDraw(func() float64 { return 0 }))

	exp.SetVariant(testCtx, "nonsense")

	if got := exp.ActiveVariant().ID; got != "a" {
		t.Errorf("assignment changed to %q by unknown id", got)
	}
	if n := len(exp.Events()); n != 0 {
		t.Errorf("expected no events for rejected change, got %d", n)
	}
}

func TestSetVariant_OverwritesAndLogs(t *testing.T) {
	kv := storage.NewMemoryKV()
	exp := newExperiment(t, twoVariantConfig(), kv,
		experiment.WithDraw(func() float64 { return 0 }))

	exp.SetVariant(testCtx, "b")

	if got := exp.ActiveVariant().ID; got != "b" {
		t.Errorf("expected active variant 'b', got %q", got)
	}

	events := exp.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != experiment.EventManualChange {
		t.Errorf("expected manual_variant_change, got %q", events[0].EventType)
	}
	if events[0].VariantID != "b" {
		t.Errorf("change attributed to %q, expected 'b'", events[0].VariantID)
	}

	// The override persists across reloads
	again := newExperiment(t, twoVariantConfig(), kv)
	if got := again.ActiveVariant().ID; got != "b" {
		t.Errorf("override not persisted, got %q", got)
	}
}

func TestReset_ClearsLogAndRedraws(t *testing.T) {
	kv := storage.NewMemoryKV()
	exp := newExperiment(t, twoVariantConfig(), kv,
		experiment.WithDraw(func() float64 { return 0 }))

	for i := 0; i < 5; i++ {
		exp.RecordPageView(testCtx)
	}
	if n := len(exp.Events()); n != 5 {
		t.Fatalf("expected 5 events before reset, got %d", n)
	}

	exp.Reset(testCtx)

	events := exp.Events()
	if len(events) != 1 {
		t.Fatalf("expected event log to hold only the fresh page view, got %d events", len(events))
	}
	if events[0].EventType != experiment.EventPageView {
		t.Errorf("expected page_view, got %q", events[0].EventType)
	}
	if events[0].VariantID != exp.ActiveVariant().ID {
		t.Errorf("fresh page view attributed to %q, active is %q",
			events[0].VariantID, exp.ActiveVariant().ID)
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := experiment.New(experiment.Config{Name: "empty"}, storage.NewMemoryKV()); err == nil {
		t.Error("expected error for empty variant set")
	}

	cfg := experiment.Config{
		Name:     "bad",
		Variants: []experiment.Variant{{ID: "a", Weight: 0}},
	}
	if _, err := experiment.New(cfg, storage.NewMemoryKV()); err == nil {
		t.Error("expected error for non-positive weight")
	}
}

// failingKV accepts reads but rejects every write.
type failingKV struct {
	inner *storage.MemoryKV
}

func (f *failingKV) Get(key string) (string, error) { return f.inner.Get(key) }
func (f *failingKV) Set(key, value string) error    { return errors.New("quota exceeded") }
func (f *failingKV) Remove(key string) error        { return errors.New("quota exceeded") }
func (f *failingKV) Close() error                   { return nil }

func TestStorageFailure_DegradesToMemory(t *testing.T) {
	kv := &failingKV{inner: storage.NewMemoryKV()}

	// Construction must survive the persistence failure; the visitor
	// still gets a variant for this session.
	exp := newExperiment(t, twoVariantConfig(), kv,
		experiment.WithDraw(func() float64 { return 0 }))
	if got := exp.ActiveVariant().ID; got != "a" {
		t.Fatalf("expected session assignment 'a', got %q", got)
	}

	exp.RecordPageView(testCtx)
	exp.RecordEvent(testCtx, experiment.EventFormSubmission, nil)

	events := exp.Events()
	if len(events) != 2 {
		t.Errorf("expected in-memory log with 2 events, got %d", len(events))
	}
}

// panickyForwarder simulates a broken third-party collaborator.
type panickyForwarder struct{}

func (panickyForwarder) Record(experiment.Event) { panic("collaborator exploded") }

type countingForwarder struct {
	events []experiment.Event
}

func (c *countingForwarder) Record(ev experiment.Event) { c.events = append(c.events, ev) }

func TestForwarders_GuardedAndIndependent(t *testing.T) {
	counter := &countingForwarder{}
	exp := newExperiment(t, twoVariantConfig(), storage.NewMemoryKV(),
		experiment.WithDraw(func() float64 { return 0 }),
		experiment.WithForwarders(panickyForwarder{}, counter))

	// Must not panic, and the second forwarder still runs.
	exp.RecordPageView(testCtx)

	if len(counter.events) != 1 {
		t.Errorf("expected forwarder after the panicking one to receive the event, got %d", len(counter.events))
	}
}
