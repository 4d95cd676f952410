package service

import "fmt"

// Recognized import columns. Anything else in the header row is ignored.
const (
	ColEmail     = "email"
	ColFirstName = "first_name"
	ColLastName  = "last_name"
	ColPhone     = "phone"
	ColCompany   = "company"
	ColJobTitle  = "job_title"
	ColNotes     = "notes"
	ColTags      = "tags"
)

// ImportRow is one raw input line: the field-to-text mapping plus a 1-based
// data line number for error reporting. A key missing from Fields means the
// column was not supplied, which is different from an empty value.
type ImportRow struct {
	Line   int               `json:"line"`
	Fields map[string]string `json:"fields"`
}

func (r ImportRow) field(col string) (string, bool) {
	v, ok := r.Fields[col]
	return v, ok
}

// RowError is a per-row validation failure. It never aborts a batch.
type RowError struct {
	Line   int
	Reason string
	Value  string
}

func (e *RowError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("Row %d: %s: %s", e.Line, e.Reason, e.Value)
	}
	return fmt.Sprintf("Row %d: %s", e.Line, e.Reason)
}

// NormalizedContact is the validated candidate built from one row. Optional
// fields are pointers so an absent column (nil) can be told apart from an
// empty one; that distinction drives the per-field merge in update mode.
type NormalizedContact struct {
	Email     string
	FirstName *string
	LastName  *string
	Phone     *string
	Company   *string
	JobTitle  *string
	Notes     *string

	Tags        []string
	TagsPresent bool
}
