package model

import "time"

// DocumentType identifies the kind of source document, used for
// confidence priors and source-priority merging.
type DocumentType string

const (
	DocTypeTaxReturn     DocumentType = "tax_return"
	DocTypeBankStatement DocumentType = "bank_statement"
	DocTypePFS           DocumentType = "pfs"
	DocTypeDebtSchedule  DocumentType = "debt_schedule"
	DocTypeUnknown       DocumentType = "unknown"
)

// Document is a handle to one source document awaiting extraction.
type Document struct {
	ID   string       `json:"id"`
	Path string       `json:"path"`
	Type DocumentType `json:"type"`
}

// RawExtraction is the unconstrained output of one gateway call for one
// document. The model may invent key names, omit fields, or return nested
// objects; Fields is a flat bag of whatever came back.
type RawExtraction struct {
	DocumentID   string             `json:"document_id"`
	SourcePath   string             `json:"source_path"`
	DocumentType DocumentType       `json:"document_type"`
	Timestamp    time.Time          `json:"timestamp"`
	Fields       map[string]any     `json:"fields"`
	Confidences  map[string]float64 `json:"confidences,omitempty"`
}

// CategorizedExtraction is a RawExtraction bucketed into semantic
// categories. Every field from the raw extraction appears under exactly
// one category; Confidences is keyed by dotted field path.
type CategorizedExtraction struct {
	DocumentID   string                    `json:"document_id"`
	DocumentType DocumentType              `json:"document_type"`
	Timestamp    time.Time                 `json:"timestamp"`
	Categories   map[string]map[string]any `json:"categories"`
	Confidences  map[string]float64        `json:"confidences,omitempty"`
}

// FieldCount returns the number of top-level fields across all categories.
func (c CategorizedExtraction) FieldCount() int {
	n := 0
	for _, fields := range c.Categories {
		n += len(fields)
	}
	return n
}
