// Package forms drives the submission flow: it classifies incoming
// forms, validates them per type, builds the canonical record, hands
// it to the transport dispatcher, and logs the analytics event.
package forms

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/normalize"
	"github.com/nesium/splitship/internal/relay"
)

type FormType string

const (
	FormAutomation FormType = "automation-form"
	FormContact    FormType = "contact-form"
	FormGeneric    FormType = "generic-form"
)

// UX delays before the confirmation view swaps in, carried to the
// client so each form keeps its original pacing.
const (
	automationConfirmDelay = 1500 * time.Millisecond
	contactConfirmDelay    = 1000 * time.Millisecond
)

// Submission is one intercepted form post.
type Submission struct {
	FormID     string
	Fields     url.Values
	Attachment *normalize.Attachment
	SourceURL  string
	UserAgent  string
	VisitorID  string
}

// Result is what the form UI acts on. Accepted false means the
// submission was blocked before any network attempt; FieldErrors
// names the fields to flag. Accepted true shows the confirmation
// view optimistically: delivery is best-effort and its outcome is
// reported alongside, not gated on.
type Result struct {
	Accepted     bool          `json:"accepted"`
	Message      string        `json:"message,omitempty"`
	FieldErrors  []string      `json:"fieldErrors,omitempty"`
	FormType     FormType      `json:"formType"`
	ConfirmDelay time.Duration `json:"-"`
	ResetForm    bool          `json:"resetForm"`
	Delivery     relay.Outcome `json:"delivery"`
}

// contactRequired lists the fields a contact form must fill, by
// canonical name.
var contactRequired = []string{"name", "email", "message"}

// Deliverer is the transport dispatcher contract the controller
// drives. Implementations resolve every failure as an Outcome.
type Deliverer interface {
	Deliver(ctx context.Context, rec normalize.Record) relay.Outcome
}

type Controller struct {
	exp        *experiment.Experiment
	dispatcher Deliverer
	log        *zap.Logger
	validate   *validator.Validate

	mu       sync.Mutex
	bound    map[string]bool
	inFlight map[string]bool
}

func NewController(exp *experiment.Experiment, dispatcher Deliverer, log *zap.Logger) *Controller {
	return &Controller{
		exp:        exp,
		dispatcher: dispatcher,
		log:        log,
		validate:   validator.New(),
		bound:      make(map[string]bool),
		inFlight:   make(map[string]bool),
	}
}

// Bind marks a form as intercepted. Binding is idempotent: the first
// call returns true, every repeat is a no-op returning false.
func (c *Controller) Bind(formID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound[formID] {
		return false
	}
	c.bound[formID] = true
	return true
}

// Classify maps a form id onto its handling type, the same split the
// page scripts used: the automation form by exact id, anything with
// "contact" in the id as a contact form, everything else generic.
func Classify(formID string) FormType {
	switch {
	case formID == "automation-form":
		return FormAutomation
	case strings.Contains(formID, "contact"):
		return FormContact
	default:
		return FormGeneric
	}
}

// Submit runs the full pipeline for one submission. The canonical
// record is completely built, attachment included, before any
// transport runs; validation failures block synchronously with no
// network attempt. Submit never returns an error: everything the
// caller needs is in the Result.
func (c *Controller) Submit(ctx context.Context, sub Submission) Result {
	formType := Classify(sub.FormID)

	// The submit button's disabled state is UI-only; this guard is
	// the real re-entrancy check.
	c.mu.Lock()
	if c.inFlight[sub.FormID] {
		c.mu.Unlock()
		return Result{
			Accepted: false,
			FormType: formType,
			Message:  "A submission is already in progress.",
		}
	}
	c.inFlight[sub.FormID] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, sub.FormID)
		c.mu.Unlock()
	}()

	c.log.Info("form submission intercepted",
		zap.String("form", sub.FormID),
		zap.String("formType", string(formType)))

	active := c.exp.ActiveVariant()
	rec := normalize.Normalize(sub.Fields, active, string(formType), sub.SourceURL)

	if blocked, ok := c.validateForType(formType, sub, rec); !ok {
		return blocked
	}

	if sub.Attachment != nil {
		rec = rec.WithAttachment(*sub.Attachment)
	}

	outcome := c.dispatcher.Deliver(ctx, rec)
	if !outcome.Success {
		c.log.Warn("delivery failed", zap.String("message", outcome.Message))
	}

	c.exp.RecordEvent(
		experiment.EventContext{URL: sub.SourceURL, UserAgent: sub.UserAgent, VisitorID: sub.VisitorID},
		experiment.EventFormSubmission,
		map[string]string{
			"variation": active.ID,
			"title":     active.DisplayText,
			"form_type": string(formType),
		},
	)

	return c.accepted(formType, outcome)
}

func (c *Controller) validateForType(formType FormType, sub Submission, rec normalize.Record) (Result, bool) {
	switch formType {
	case FormAutomation:
		if rec.Improvements == "" {
			return Result{
				Accepted:    false,
				FormType:    formType,
				Message:     "Please select at least one area that needs improvement.",
				FieldErrors: []string{"improvements"},
			}, false
		}
	case FormContact:
		var missing []string
		for _, field := range contactRequired {
			value := canonicalValue(rec, field)
			rule := "required"
			if field == "email" {
				rule = "required,email"
			}
			if err := c.validate.Var(value, rule); err != nil {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			return Result{
				Accepted:    false,
				FormType:    formType,
				Message:     "Please fill in all required fields.",
				FieldErrors: missing,
			}, false
		}
	}
	return Result{}, true
}

func canonicalValue(rec normalize.Record, field string) string {
	switch field {
	case "name":
		return rec.Name
	case "email":
		return rec.Email
	case "message":
		return rec.Message
	default:
		return ""
	}
}

func (c *Controller) accepted(formType FormType, outcome relay.Outcome) Result {
	res := Result{
		Accepted: true,
		FormType: formType,
		Delivery: outcome,
	}

	switch formType {
	case FormAutomation:
		res.ConfirmDelay = automationConfirmDelay
		res.Message = "Thank you! We'll be in touch shortly."
	case FormContact:
		res.ConfirmDelay = contactConfirmDelay
		res.ResetForm = true
		res.Message = "Thank you! Your message has been sent."
	default:
		res.Message = "Submission received."
	}
	return res
}
