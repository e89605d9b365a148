package normalize

import "net/url"

// Record is the canonical, transport-ready shape of one form
// submission. The JSON/wire field names are fixed by the spreadsheet
// receiver and must not change.
type Record struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Company           string `json:"company"`
	ProjectType       string `json:"projectType"`
	Budget            string `json:"budget"`
	Timeline          string `json:"timeline"`
	Improvements      string `json:"improvements"`
	CustomImprovement string `json:"customImprovement"`
	StartDate         string `json:"startDate"`
	Message           string `json:"message"`
	ContactMethod     string `json:"contactMethod"`
	FileName          string `json:"fileName"`
	FileContent       string `json:"fileContent"`
	FileType          string `json:"fileType"`
	VariantID         string `json:"ab_test_variation"`
	VariantTitle      string `json:"ab_test_title"`
	FormType          string `json:"form_type"`
	SourceURL         string `json:"url"`
}

// Values flattens the record for query-string and form-encoded
// transports. Empty fields are carried as empty strings so the
// receiver's column order stays stable.
func (r Record) Values() url.Values {
	return url.Values{
		"name":              {r.Name},
		"email":             {r.Email},
		"phone":             {r.Phone},
		"company":           {r.Company},
		"projectType":       {r.ProjectType},
		"budget":            {r.Budget},
		"timeline":          {r.Timeline},
		"improvements":      {r.Improvements},
		"customImprovement": {r.CustomImprovement},
		"startDate":         {r.StartDate},
		"message":           {r.Message},
		"contactMethod":     {r.ContactMethod},
		"fileName":          {r.FileName},
		"fileContent":       {r.FileContent},
		"fileType":          {r.FileType},
		"ab_test_variation": {r.VariantID},
		"ab_test_title":     {r.VariantTitle},
		"form_type":         {r.FormType},
		"url":               {r.SourceURL},
	}
}

// HasAttachment reports whether the record carries an encoded file.
func (r Record) HasAttachment() bool {
	return r.FileName != "" && r.FileContent != ""
}
