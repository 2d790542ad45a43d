// Package merge implements the incremental merge engine: it folds one
// document's categorized extraction into the master record, resolving
// per-field conflicts under a configurable strategy and recording
// provenance and an append-only conflict log.
package merge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// Strategy selects how a conflicting field value is resolved.
type Strategy string

const (
	FirstWins       Strategy = "first_wins"
	LastWins        Strategy = "last_wins"
	ConfidenceBased Strategy = "confidence_based"
	SourcePriority  Strategy = "source_priority"
)

// DefaultPriors are per-document-type confidence priors used when the
// extraction carries no explicit per-field confidence. Tuned starting
// values, overridable via config.
var DefaultPriors = map[model.DocumentType]float64{
	model.DocTypeTaxReturn:     0.90,
	model.DocTypeBankStatement: 0.85,
	model.DocTypePFS:           0.80,
	model.DocTypeDebtSchedule:  0.80,
	model.DocTypeUnknown:       0.50,
}

// Options configures a single merge call.
type Options struct {
	Strategy Strategy

	// SourcePriority orders document types by precedence, highest first.
	// Only consulted when Strategy is SourcePriority.
	SourcePriority []model.DocumentType
}

// RejectedError reports an incoming extraction that failed structural
// validation. The master record is unchanged.
type RejectedError struct {
	DocumentID string
	Reason     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("merge rejected for document %q: %s", e.DocumentID, e.Reason)
}

// Engine merges categorized extractions into master records.
type Engine struct {
	priors map[model.DocumentType]float64
}

// New creates an Engine. Nil priors fall back to DefaultPriors.
func New(priors map[model.DocumentType]float64) *Engine {
	if priors == nil {
		priors = DefaultPriors
	}
	return &Engine{priors: priors}
}

// Merge returns a new master record with the incoming extraction folded
// in. The input record is never mutated; callers persist the returned
// record themselves. A structural validation failure returns a
// *RejectedError and the input untouched.
func (e *Engine) Merge(master *model.MasterRecord, inc model.CategorizedExtraction, opts Options) (*model.MasterRecord, error) {
	if err := validate(inc); err != nil {
		return nil, err
	}
	if opts.Strategy == "" {
		opts.Strategy = ConfidenceBased
	}

	rec := master.Clone()
	now := time.Now().UTC()
	st := &mergeState{engine: e, rec: rec, inc: inc, opts: opts, now: now}

	// Categories sorted so conflict log ordering is stable across runs.
	for _, cat := range sortedKeys(inc.Categories) {
		fields := inc.Categories[cat]
		for _, key := range sortedKeys(fields) {
			st.mergeField(cat, cat+"."+key, key, fields[key])
		}
	}

	st.checkConsistency()

	rec.Version++
	rec.UpdatedAt = now
	rec.DocumentHistory = append(rec.DocumentHistory, model.DocumentEntry{
		DocumentID:        inc.DocumentID,
		Timestamp:         now,
		FieldsContributed: st.contributed,
	})

	zap.L().Debug("merge: folded extraction",
		zap.String("application", rec.ApplicationID),
		zap.String("document", inc.DocumentID),
		zap.Int64("version", rec.Version),
		zap.Int("fields_contributed", st.contributed),
		zap.Int("conflicts", st.conflicts),
	)
	return rec, nil
}

// mergeState carries per-call bookkeeping.
type mergeState struct {
	engine      *Engine
	rec         *model.MasterRecord
	inc         model.CategorizedExtraction
	opts        Options
	now         time.Time
	contributed int
	conflicts   int

	// arrayCats remembers which category each merged array came in
	// under, so confidence lookups on arrays.name[i].field paths can
	// fall back to the categorized key the extraction was scored with.
	arrayCats map[string]string
}

// mergeField routes one top-level incoming field. Arrays of objects go
// through the append-and-dedupe path; everything else merges recursively
// into the category map.
func (s *mergeState) mergeField(category, path, key string, value any) {
	if isEmpty(value) {
		return
	}

	if rows, ok := objectRows(value); ok {
		if s.arrayCats == nil {
			s.arrayCats = make(map[string]string)
		}
		s.arrayCats[key] = category
		s.mergeArray(key, rows)
		return
	}

	if s.rec.Categories[category] == nil {
		s.rec.Categories[category] = make(map[string]any)
	}
	s.mergeInto(s.rec.Categories[category], key, path, value)
}

// mergeInto applies the per-field algorithm at one position of the target
// map, recursing through nested objects so conflicts land on leaf paths.
func (s *mergeState) mergeInto(target map[string]any, key, path string, incoming any) {
	existing, present := target[key]

	incMap, incIsMap := incoming.(map[string]any)
	exMap, exIsMap := existing.(map[string]any)

	switch {
	case !present:
		target[key] = model.CopyValue(incoming)
		s.recordLeafProvenance(path, incoming)
		s.contributed++

	case incIsMap && exIsMap:
		for _, k := range sortedKeys(incMap) {
			s.mergeInto(exMap, k, path+"."+k, incMap[k])
		}

	case model.ValuesEqual(existing, incoming):
		// No-op: equal after normalization, no conflict entry.

	default:
		winner, reason := s.pickWinner(path, existing, incoming)
		winSource := s.currentSource(path)
		exConf := 0.0
		if prov, ok := s.rec.Provenance[path]; ok {
			exConf = prov.Confidence
		}
		if winner {
			target[key] = model.CopyValue(incoming)
			s.writeProvenance(path, incoming)
			winSource = s.inc.DocumentID
		}
		s.rec.ConflictLog = append(s.rec.ConflictLog, model.ConflictEntry{
			FieldPath:     path,
			OldValue:      existing,
			NewValue:      incoming,
			OldConfidence: exConf,
			NewConfidence: s.confidence(path),
			WinningSource: winSource,
			Reason:        reason,
			Category:      model.ConflictResolution,
			Timestamp:     s.now,
		})
		s.conflicts++
	}
}

// recordLeafProvenance writes provenance for a newly inserted value,
// descending into nested objects so every leaf path is covered.
func (s *mergeState) recordLeafProvenance(path string, value any) {
	if m, ok := value.(map[string]any); ok {
		for _, k := range sortedKeys(m) {
			s.recordLeafProvenance(path+"."+k, m[k])
		}
		return
	}
	s.writeProvenance(path, value)
}

func (s *mergeState) writeProvenance(path string, value any) {
	s.rec.Provenance[path] = model.FieldProvenance{
		FieldPath:        path,
		Value:            model.CopyValue(value),
		Confidence:       s.confidence(path),
		SourceDocumentID: s.inc.DocumentID,
		SourceDocType:    s.inc.DocumentType,
		WrittenAt:        s.now,
	}
}

// confidence returns the incoming confidence for a field path, walking up
// to the top-level field before falling back to the document-type prior.
// Array paths are retried under the categorized key they arrived with,
// since extractions score arrays.loans[0].balance as debt.loans.
func (s *mergeState) confidence(path string) float64 {
	for p := path; p != ""; p = parentPath(p) {
		if c, ok := s.inc.Confidences[p]; ok {
			return c
		}
	}
	if alt, ok := s.categorizedArrayPath(path); ok {
		for p := alt; p != ""; p = parentPath(p) {
			if c, ok := s.inc.Confidences[p]; ok {
				return c
			}
		}
	}
	if prior, ok := s.engine.priors[s.inc.DocumentType]; ok {
		return prior
	}
	return DefaultPriors[model.DocTypeUnknown]
}

// categorizedArrayPath rewrites arrays.name[i].field into the
// category.name.field form, dropping the row index.
func (s *mergeState) categorizedArrayPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "arrays.")
	if !ok {
		return "", false
	}
	name, suffix := rest, ""
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		name, suffix = rest[:i], rest[i:]
	}
	if j := strings.IndexByte(name, '['); j >= 0 {
		name = name[:j]
	}
	cat, ok := s.arrayCats[name]
	if !ok {
		return "", false
	}
	return cat + "." + name + suffix, true
}

func (s *mergeState) currentSource(path string) string {
	if prov, ok := s.rec.Provenance[path]; ok {
		return prov.SourceDocumentID
	}
	return ""
}

// pickWinner applies the active strategy. It returns whether the incoming
// value wins and a human-readable reason for the conflict log.
func (s *mergeState) pickWinner(path string, existing, incoming any) (bool, string) {
	switch s.opts.Strategy {
	case FirstWins:
		return false, "existing value retained (first_wins)"

	case LastWins:
		return true, "incoming value overwrites (last_wins)"

	case SourcePriority:
		incRank := priorityRank(s.opts.SourcePriority, s.inc.DocumentType)
		exRank := len(s.opts.SourcePriority) // unranked sorts last
		if prov, ok := s.rec.Provenance[path]; ok {
			exRank = priorityRank(s.opts.SourcePriority, prov.SourceDocType)
		}
		if incRank < exRank {
			return true, fmt.Sprintf("source priority %s over rank %d", s.inc.DocumentType, exRank)
		}
		return false, fmt.Sprintf("existing source outranks %s", s.inc.DocumentType)

	default: // ConfidenceBased
		incConf := s.confidence(path)
		exConf := 0.0
		if prov, ok := s.rec.Provenance[path]; ok {
			exConf = prov.Confidence
		}
		if incConf > exConf {
			return true, fmt.Sprintf("confidence %.2f > %.2f", incConf, exConf)
		}
		if incConf == exConf {
			// Tie broken by recency.
			return true, fmt.Sprintf("confidence tie %.2f, last wins", incConf)
		}
		return false, fmt.Sprintf("confidence %.2f < %.2f", incConf, exConf)
	}
}

func priorityRank(order []model.DocumentType, dt model.DocumentType) int {
	for i, d := range order {
		if d == dt {
			return i
		}
	}
	return len(order)
}

func validate(inc model.CategorizedExtraction) error {
	if inc.DocumentID == "" {
		return &RejectedError{Reason: "missing document_id"}
	}
	if inc.Categories == nil {
		return &RejectedError{DocumentID: inc.DocumentID, Reason: "nil categories"}
	}
	for cat, fields := range inc.Categories {
		if cat == "" {
			return &RejectedError{DocumentID: inc.DocumentID, Reason: "empty category name"}
		}
		if fields == nil {
			return &RejectedError{DocumentID: inc.DocumentID, Reason: fmt.Sprintf("nil field map for category %q", cat)}
		}
	}
	return nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// objectRows reports whether a value is a non-empty slice of objects,
// which the engine treats as multi-instance array data.
func objectRows(v any) ([]map[string]any, bool) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, false
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		rows = append(rows, m)
	}
	return rows, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parentPath(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return ""
}
