package stats

import "github.com/nesium/splitship/internal/experiment"

// MinViewsForWinner is the naive minimum-sample gate: a variant with
// fewer page views can never be declared the winner.
const MinViewsForWinner = 10

// VariantMetrics is the derived per-variant snapshot. It is
// recomputed from the event log on every call and never cached.
type VariantMetrics struct {
	VariantID       string  `json:"variation"`
	Title           string  `json:"title"`
	PageViews       int     `json:"pageViews"`
	FormSubmissions int     `json:"formSubmissions"`
	ConversionRate  float64 `json:"conversionRate"`
	Events          int     `json:"events"`
}

// Snapshot computes metrics for every configured variant, in variant
// definition order. Variants with no events still appear with zero
// counts.
func Snapshot(variants []experiment.Variant, events []experiment.Event) []VariantMetrics {
	out := make([]VariantMetrics, len(variants))

	for i, v := range variants {
		m := VariantMetrics{VariantID: v.ID, Title: v.DisplayText}
		for _, ev := range events {
			if ev.VariantID != v.ID {
				continue
			}
			m.Events++
			switch ev.EventType {
			case experiment.EventPageView:
				m.PageViews++
			case experiment.EventFormSubmission:
				m.FormSubmissions++
			}
		}

		views := m.PageViews
		if views < 1 {
			views = 1
		}
		m.ConversionRate = float64(m.FormSubmissions) / float64(views)
		out[i] = m
	}

	return out
}

// Winner returns the id of the variant with the highest conversion
// rate among variants with at least MinViewsForWinner page views, or
// "" when none qualifies. Ties break to the first variant reaching
// the maximum in definition order; deterministic but arbitrary.
func Winner(snapshot []VariantMetrics) string {
	winner := ""
	best := 0.0

	for _, m := range snapshot {
		if m.ConversionRate > best && m.PageViews >= MinViewsForWinner {
			best = m.ConversionRate
			winner = m.VariantID
		}
	}

	return winner
}
