package model

import "time"

// Transform names a deterministic output formatting rule applied after a
// form field is resolved.
type Transform string

const (
	TransformNone       Transform = "none"
	TransformCurrency   Transform = "currency"
	TransformPercentage Transform = "percentage"
	TransformSSN        Transform = "ssn_format"
	TransformDate       Transform = "date"
)

// FormFieldSpec is one entry in a target form's schema.
type FormFieldSpec struct {
	ID         string    `json:"id" yaml:"id"`
	Label      string    `json:"label,omitempty" yaml:"label,omitempty"`
	SourcePath string    `json:"source_path" yaml:"source_path"`
	Aliases    []string  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Transform  Transform `json:"transform,omitempty" yaml:"transform,omitempty"`
	Required   bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default    *string   `json:"default,omitempty" yaml:"default,omitempty"`
}

// SheetTemplate points a form at a workbook template to fill: which
// file, which sheet, and which cell each field lands in. Path is
// resolved relative to the form directory unless absolute.
type SheetTemplate struct {
	Path  string            `json:"path" yaml:"path"`
	Sheet string            `json:"sheet,omitempty" yaml:"sheet,omitempty"`
	Cells map[string]string `json:"cells" yaml:"cells"`
}

// FormSpec describes one bank-specific target form.
type FormSpec struct {
	FormID   string          `json:"form_id" yaml:"form_id"`
	Bank     string          `json:"bank,omitempty" yaml:"bank,omitempty"`
	Title    string          `json:"title,omitempty" yaml:"title,omitempty"`
	Version  string          `json:"version,omitempty" yaml:"version,omitempty"`
	Template *SheetTemplate  `json:"template,omitempty" yaml:"template,omitempty"`
	Fields   []FormFieldSpec `json:"fields" yaml:"fields"`
}

// RequiredFields returns the specs of all required fields.
func (f FormSpec) RequiredFields() []FormFieldSpec {
	var req []FormFieldSpec
	for _, fs := range f.Fields {
		if fs.Required {
			req = append(req, fs)
		}
	}
	return req
}

// MappedFormResult is the disposable projection of a MasterRecord onto one
// target form. It is recomputable at any time and never flows back into
// the record.
type MappedFormResult struct {
	FormID            string             `json:"form_id"`
	ApplicationID     string             `json:"application_id"`
	RecordVersion     int64              `json:"record_version"`
	FieldValues       map[string]any     `json:"field_values"`
	FieldConfidences  map[string]float64 `json:"field_confidences"`
	Coverage          float64            `json:"coverage"`
	UnmatchedRequired []string           `json:"unmatched_required_fields,omitempty"`
	NeedsReview       []string           `json:"needs_review,omitempty"`
	GeneratedAt       time.Time          `json:"generated_at"`
}
