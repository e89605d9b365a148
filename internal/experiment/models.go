package experiment

// Variant is one candidate headline under test. The variant set is
// static configuration; it never changes while an experiment runs.
type Variant struct {
	ID          string  `json:"id"`
	DisplayText string  `json:"title"`
	Weight      float64 `json:"weight"`
}

// Event is one append-only analytics record. The JSON field names
// match the log format the original localStorage implementation
// wrote, so exported data stays comparable; visitor is new, it had no
// meaning when the log lived in a single browser.
type Event struct {
	Timestamp string            `json:"timestamp"` // ISO-8601 / RFC 3339
	VariantID string            `json:"variation"`
	EventType string            `json:"eventType"`
	URL       string            `json:"url"`
	UserAgent string            `json:"userAgent"`
	VisitorID string            `json:"visitor,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

const (
	EventPageView       = "page_view"
	EventFormSubmission = "form_submission"
	EventManualChange   = "manual_variant_change"
)

// EventContext carries the page-load facts stamped onto every event.
type EventContext struct {
	URL       string
	UserAgent string
	VisitorID string
}

// Config defines one experiment: its storage namespace, the headline
// text being replaced, and the candidate variants.
type Config struct {
	Name     string    `json:"name"`
	Baseline string    `json:"baseline"`
	Variants []Variant `json:"variants"`
}

// DefaultConfig returns the title-variations experiment this tool
// ships configured for.
func DefaultConfig() Config {
	return Config{
		Name:     "title-variations",
		Baseline: "Your automation assistant for less than a junior",
		Variants: []Variant{
			{ID: "original", DisplayText: "Your automation assistant for less than a junior.", Weight: 1},
			{ID: "cost-effective", DisplayText: "AI automation that costs less than hiring a junior.", Weight: 1},
			{ID: "affordable", DisplayText: "Affordable AI automation for your business.", Weight: 1},
			{ID: "budget-friendly", DisplayText: "Budget-friendly automation that actually works.", Weight: 1},
			{ID: "smart-investment", DisplayText: "Smart automation investment for growing businesses.", Weight: 1},
			{ID: "value-focused", DisplayText: "Maximum automation value, minimum cost.", Weight: 1},
			{ID: "efficient", DisplayText: "Efficient automation without the junior price tag.", Weight: 1},
			{ID: "practical", DisplayText: "Practical automation solutions for real businesses.", Weight: 1},
		},
	}
}

func (c Config) variantKey() string { return c.Name + "_variation" }
func (c Config) eventsKey() string  { return c.Name + "_analytics" }

// Find returns the variant with the given id, or false when the id
// is not part of the configured set.
func (c Config) Find(id string) (Variant, bool) {
	for _, v := range c.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}
