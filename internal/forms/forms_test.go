package forms_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/forms"
	"github.com/nesium/splitship/internal/normalize"
	"github.com/nesium/splitship/internal/relay"
	"github.com/nesium/splitship/internal/storage"
)

// recordingDeliverer captures delivered records and returns a canned
// outcome. An optional gate holds automation-form deliveries open so
// tests can race a second submission against one in flight.
type recordingDeliverer struct {
	mu      sync.Mutex
	records []normalize.Record
	outcome relay.Outcome
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (d *recordingDeliverer) Deliver(ctx context.Context, rec normalize.Record) relay.Outcome {
	if d.entered != nil {
		d.once.Do(func() { close(d.entered) })
	}
	if d.gate != nil && rec.FormType == string(forms.FormAutomation) {
		<-d.gate
	}
	d.mu.Lock()
	d.records = append(d.records, rec)
	d.mu.Unlock()
	return d.outcome
}

func (d *recordingDeliverer) delivered() []normalize.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]normalize.Record(nil), d.records...)
}

func newTestController(t *testing.T, d forms.Deliverer) (*forms.Controller, *experiment.Experiment) {
	t.Helper()

	cfg := experiment.Config{
		Name:     "test",
		Baseline: "Hello",
		Variants: []experiment.Variant{
			{ID: "a", DisplayText: "Headline A", Weight: 1},
			{ID: "b", DisplayText: "Headline B", Weight: 1},
		},
	}
	exp, err := experiment.New(cfg, storage.NewMemoryKV(),
		experiment.WithDraw(func() float64 { return 0 }))
	require.NoError(t, err)

	return forms.NewController(exp, d, zap.NewNop()), exp
}

func automationSubmission() forms.Submission {
	return forms.Submission{
		FormID: "automation-form",
		Fields: url.Values{
			"name":         {"Alice"},
			"email":        {"alice@example.com"},
			"improvements": {"Lead Management", "Content Automation"},
		},
		SourceURL: "https://example.com/",
		UserAgent: "test-agent",
		VisitorID: "v-1",
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, forms.FormAutomation, forms.Classify("automation-form"))
	assert.Equal(t, forms.FormContact, forms.Classify("contact-form"))
	assert.Equal(t, forms.FormContact, forms.Classify("footer-contact"))
	assert.Equal(t, forms.FormGeneric, forms.Classify("newsletter"))
}

func TestBind_Idempotent(t *testing.T) {
	ctrl, _ := newTestController(t, &recordingDeliverer{})

	assert.True(t, ctrl.Bind("automation-form"))
	assert.False(t, ctrl.Bind("automation-form"), "repeat binding is a no-op")
	assert.True(t, ctrl.Bind("contact-form"))
}

func TestSubmit_AutomationAccepted(t *testing.T) {
	d := &recordingDeliverer{outcome: relay.Outcome{Success: true, Confirmed: true, Message: "Data saved"}}
	ctrl, exp := newTestController(t, d)

	res := ctrl.Submit(context.Background(), automationSubmission())

	assert.True(t, res.Accepted)
	assert.Equal(t, forms.FormAutomation, res.FormType)
	assert.Equal(t, "Thank you! We'll be in touch shortly.", res.Message)
	assert.Equal(t, 1500*time.Millisecond, res.ConfirmDelay)
	assert.False(t, res.ResetForm)
	assert.True(t, res.Delivery.Success)

	records := d.delivered()
	require.Len(t, records, 1)
	assert.Equal(t, "Alice", records[0].Name)
	assert.Equal(t, "Lead Management, Content Automation", records[0].Improvements)
	assert.Equal(t, "a", records[0].VariantID)

	events := exp.Events()
	require.Len(t, events, 1)
	assert.Equal(t, experiment.EventFormSubmission, events[0].EventType)
	assert.Equal(t, "v-1", events[0].VisitorID)
	assert.Equal(t, "automation-form", events[0].Extra["form_type"])
	assert.Equal(t, "a", events[0].Extra["variation"])
}

func TestSubmit_AutomationBlockedWithoutImprovements(t *testing.T) {
	d := &recordingDeliverer{outcome: relay.Outcome{Success: true}}
	ctrl, exp := newTestController(t, d)

	sub := automationSubmission()
	sub.Fields.Del("improvements")

	res := ctrl.Submit(context.Background(), sub)

	assert.False(t, res.Accepted)
	assert.Equal(t, "Please select at least one area that needs improvement.", res.Message)
	assert.Equal(t, []string{"improvements"}, res.FieldErrors)

	assert.Empty(t, d.delivered(), "blocked submission must not reach the transport")
	assert.Empty(t, exp.Events(), "blocked submission must not log an event")
}

func TestSubmit_ContactAccepted(t *testing.T) {
	d := &recordingDeliverer{outcome: relay.Outcome{Success: true, Confirmed: true}}
	ctrl, _ := newTestController(t, d)

	res := ctrl.Submit(context.Background(), forms.Submission{
		FormID: "contact-form",
		Fields: url.Values{
			"name":    {"Alice"},
			"email":   {"alice@example.com"},
			"message": {"Hi there"},
		},
		SourceURL: "https://example.com/",
	})

	assert.True(t, res.Accepted)
	assert.Equal(t, "Thank you! Your message has been sent.", res.Message)
	assert.Equal(t, 1000*time.Millisecond, res.ConfirmDelay)
	assert.True(t, res.ResetForm, "contact forms clear after a successful send")
}

func TestSubmit_ContactBlockedOnMissingFields(t *testing.T) {
	d := &recordingDeliverer{}
	ctrl, _ := newTestController(t, d)

	res := ctrl.Submit(context.Background(), forms.Submission{
		FormID: "contact-form",
		Fields: url.Values{
			"email": {"not-an-email"},
		},
	})

	assert.False(t, res.Accepted)
	assert.Equal(t, "Please fill in all required fields.", res.Message)
	assert.Equal(t, []string{"name", "email", "message"}, res.FieldErrors)
	assert.Empty(t, d.delivered())
}

func TestSubmit_ContactAcceptsHistoricalFieldNames(t *testing.T) {
	d := &recordingDeliverer{outcome: relay.Outcome{Success: true}}
	ctrl, _ := newTestController(t, d)

	// fullname and kpi normalize to name and message.
	res := ctrl.Submit(context.Background(), forms.Submission{
		FormID: "contact-form",
		Fields: url.Values{
			"fullname": {"Alice"},
			"email":    {"alice@example.com"},
			"kpi":      {"Cut reporting time in half"},
		},
	})

	assert.True(t, res.Accepted)
}

func TestSubmit_GenericFormSkipsValidation(t *testing.T) {
	d := &recordingDeliverer{outcome: relay.Outcome{Success: true}}
	ctrl, _ := newTestController(t, d)

	res := ctrl.Submit(context.Background(), forms.Submission{
		FormID: "newsletter",
		Fields: url.Values{"email": {"alice@example.com"}},
	})

	assert.True(t, res.Accepted)
	assert.Equal(t, "Submission received.", res.Message)
	assert.Zero(t, res.ConfirmDelay)
}

func TestSubmit_AcceptedDespiteDeliveryFailure(t *testing.T) {
	d := &recordingDeliverer{outcome: relay.Outcome{Success: false, Message: "Request timeout"}}
	ctrl, exp := newTestController(t, d)

	res := ctrl.Submit(context.Background(), automationSubmission())

	assert.True(t, res.Accepted, "confirmation is optimistic, not gated on transport")
	assert.False(t, res.Delivery.Success)
	assert.Equal(t, "Request timeout", res.Delivery.Message)
	assert.Len(t, exp.Events(), 1, "the event logs even when delivery fails")
}

func TestSubmit_AttachesFile(t *testing.T) {
	d := &recordingDeliverer{outcome: relay.Outcome{Success: true}}
	ctrl, _ := newTestController(t, d)

	sub := automationSubmission()
	sub.Attachment = &normalize.Attachment{Name: "brief.pdf", MIME: "application/pdf", Content: []byte("hello")}

	ctrl.Submit(context.Background(), sub)

	records := d.delivered()
	require.Len(t, records, 1)
	assert.Equal(t, "brief.pdf", records[0].FileName)
	assert.Equal(t, "aGVsbG8=", records[0].FileContent)
	assert.True(t, records[0].HasAttachment())
}

func TestSubmit_RejectsConcurrentSubmissionOfSameForm(t *testing.T) {
	d := &recordingDeliverer{
		outcome: relay.Outcome{Success: true},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	ctrl, _ := newTestController(t, d)

	first := make(chan forms.Result, 1)
	go func() {
		first <- ctrl.Submit(context.Background(), automationSubmission())
	}()

	// Wait until the first submission is inside the transport, then
	// race a second one against it.
	<-d.entered
	res := ctrl.Submit(context.Background(), automationSubmission())
	assert.False(t, res.Accepted)
	assert.Equal(t, "A submission is already in progress.", res.Message)

	close(d.gate)
	assert.True(t, (<-first).Accepted)

	// The guard clears once the first submission finishes.
	res = ctrl.Submit(context.Background(), automationSubmission())
	assert.True(t, res.Accepted)
}

func TestSubmit_DifferentFormsDoNotShareGuard(t *testing.T) {
	d := &recordingDeliverer{
		outcome: relay.Outcome{Success: true},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	ctrl, _ := newTestController(t, d)

	first := make(chan forms.Result, 1)
	go func() {
		first <- ctrl.Submit(context.Background(), automationSubmission())
	}()
	<-d.entered

	res := ctrl.Submit(context.Background(), forms.Submission{
		FormID: "newsletter",
		Fields: url.Values{"email": {"alice@example.com"}},
	})
	assert.True(t, res.Accepted, "an unrelated form submits independently")

	close(d.gate)
	<-first
}
