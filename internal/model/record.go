package model

import "time"

// Standard categories, in categorizer priority order.
const (
	CategoryIdentity      = "identity"
	CategoryBusiness      = "business"
	CategoryFinancial     = "financial"
	CategoryTax           = "tax"
	CategoryDebt          = "debt"
	CategoryUncategorized = "uncategorized"
)

// ConflictReason classifies a conflict_log entry.
type ConflictReason string

const (
	ConflictResolution  ConflictReason = "resolution"
	ConflictConsistency ConflictReason = "consistency"
)

// FieldProvenance records which document established a field's current
// value and with what confidence.
type FieldProvenance struct {
	FieldPath        string       `json:"field_path"`
	Value            any          `json:"value"`
	Confidence       float64      `json:"confidence"`
	SourceDocumentID string       `json:"source_document_id"`
	SourceDocType    DocumentType `json:"source_doc_type,omitempty"`
	WrittenAt        time.Time    `json:"written_at"`
}

// ConflictEntry is one append-only conflict_log record.
type ConflictEntry struct {
	FieldPath     string         `json:"field_path"`
	OldValue      any            `json:"old_value"`
	NewValue      any            `json:"new_value"`
	OldConfidence float64        `json:"old_confidence,omitempty"`
	NewConfidence float64        `json:"new_confidence,omitempty"`
	WinningSource string         `json:"winning_source"`
	Reason        string         `json:"reason"`
	Category      ConflictReason `json:"category"`
	Timestamp     time.Time      `json:"timestamp"`
}

// DocumentEntry records one processed document in document_history.
type DocumentEntry struct {
	DocumentID        string    `json:"document_id"`
	Timestamp         time.Time `json:"timestamp"`
	FieldsContributed int       `json:"fields_contributed"`
}

// MasterRecord is the single accumulated, versioned representation of one
// applicant's extracted data. It is mutated exclusively through the merge
// engine and persisted after every merge.
type MasterRecord struct {
	ApplicationID   string                     `json:"application_id"`
	Version         int64                      `json:"version"`
	Categories      map[string]map[string]any  `json:"categories"`
	Arrays          map[string][]map[string]any `json:"arrays"`
	Provenance      map[string]FieldProvenance `json:"provenance"`
	ConflictLog     []ConflictEntry            `json:"conflict_log"`
	DocumentHistory []DocumentEntry            `json:"document_history"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// NewMasterRecord creates an empty record at version 0 for an application.
func NewMasterRecord(applicationID string) *MasterRecord {
	now := time.Now().UTC()
	return &MasterRecord{
		ApplicationID: applicationID,
		Categories:    make(map[string]map[string]any),
		Arrays:        make(map[string][]map[string]any),
		Provenance:    make(map[string]FieldProvenance),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy. The merge engine operates on a clone so a
// failed merge never leaves the caller's record half-written.
func (r *MasterRecord) Clone() *MasterRecord {
	out := &MasterRecord{
		ApplicationID:   r.ApplicationID,
		Version:         r.Version,
		Categories:      make(map[string]map[string]any, len(r.Categories)),
		Arrays:          make(map[string][]map[string]any, len(r.Arrays)),
		Provenance:      make(map[string]FieldProvenance, len(r.Provenance)),
		ConflictLog:     make([]ConflictEntry, len(r.ConflictLog)),
		DocumentHistory: make([]DocumentEntry, len(r.DocumentHistory)),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	for cat, fields := range r.Categories {
		m := make(map[string]any, len(fields))
		for k, v := range fields {
			m[k] = CopyValue(v)
		}
		out.Categories[cat] = m
	}
	for name, rows := range r.Arrays {
		copied := make([]map[string]any, len(rows))
		for i, row := range rows {
			m := make(map[string]any, len(row))
			for k, v := range row {
				m[k] = CopyValue(v)
			}
			copied[i] = m
		}
		out.Arrays[name] = copied
	}
	for k, v := range r.Provenance {
		out.Provenance[k] = v
	}
	copy(out.ConflictLog, r.ConflictLog)
	copy(out.DocumentHistory, r.DocumentHistory)
	return out
}

// Lookup returns the value at a dotted category.field path, descending
// into nested maps for deeper paths.
func (r *MasterRecord) Lookup(path string) (any, bool) {
	parts := splitPath(path)
	if len(parts) < 2 {
		return nil, false
	}
	fields, ok := r.Categories[parts[0]]
	if !ok {
		return nil, false
	}
	var cur any = map[string]any(fields)
	for _, p := range parts[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		parts = append(parts, path[start:])
	}
	return parts
}
