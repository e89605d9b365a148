// Package normalize maps the field names of the site's historical
// form shapes onto the canonical record the spreadsheet receiver
// expects.
package normalize

import (
	"net/url"
	"strings"

	"github.com/nesium/splitship/internal/experiment"
)

// aliasTable drives field resolution: for each canonical field, the
// first non-empty value among its aliases wins, in the listed order.
// The aliases cover every field name the site's forms have used;
// extend the table here rather than branching in code.
var aliasTable = []struct {
	set     func(*Record, string)
	aliases []string
}{
	{func(r *Record, v string) { r.Name = v }, []string{"firstname", "fullname", "name"}},
	{func(r *Record, v string) { r.Email = v }, []string{"email"}},
	{func(r *Record, v string) { r.Phone = v }, []string{"phone-number", "phone"}},
	{func(r *Record, v string) { r.Company = v }, []string{"company"}},
	{func(r *Record, v string) { r.ProjectType = v }, []string{"role", "projectType"}},
	{func(r *Record, v string) { r.Budget = v }, []string{"budget"}},
	{func(r *Record, v string) { r.Timeline = v }, []string{"timeline"}},
	{func(r *Record, v string) { r.CustomImprovement = v }, []string{"custom-improvement"}},
	{func(r *Record, v string) { r.StartDate = v }, []string{"start-date", "startDate"}},
	{func(r *Record, v string) { r.Message = v }, []string{"kpi", "message"}},
	{func(r *Record, v string) { r.ContactMethod = v }, []string{"contact-method"}},
}

// multiValueSeparator joins checkbox groups into the flat-row format
// the receiving sheet stores.
const multiValueSeparator = ", "

// Normalize builds the canonical record from raw form fields.
//
// Alias resolution is first-non-empty-wins per the table above. The
// improvements checkbox group keeps every same-named value, joined
// with ", ". The variant fields are always taken from the active
// assignment at call time; any caller-supplied ab_test_* values are
// ignored since these fields exist to capture ground truth at
// submission time.
func Normalize(raw url.Values, active experiment.Variant, formType, sourceURL string) Record {
	rec := Record{
		VariantID:    active.ID,
		VariantTitle: active.DisplayText,
		FormType:     formType,
		SourceURL:    sourceURL,
	}

	for _, field := range aliasTable {
		for _, alias := range field.aliases {
			if v := strings.TrimSpace(raw.Get(alias)); v != "" {
				field.set(&rec, v)
				break
			}
		}
	}

	rec.Improvements = strings.Join(nonEmpty(raw["improvements"]), multiValueSeparator)

	return rec
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
