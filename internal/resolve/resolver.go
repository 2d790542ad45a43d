// Package resolve finds the best master-record value for a target form
// field: exact path first, then aliases, then fuzzy name matching, then
// the spec's default.
package resolve

import (
	"strings"

	"go.uber.org/zap"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// Match methods, recorded on each resolution for auditing.
const (
	MethodExact   = "exact"
	MethodAlias   = "alias"
	MethodFuzzy   = "fuzzy"
	MethodDefault = "default"
)

// Alias confidence starts at firstAliasConfidence and decays by
// aliasDecay per position, never below aliasFloor.
const (
	firstAliasConfidence = 0.90
	aliasDecay           = 0.05
	aliasFloor           = 0.50
)

// DefaultFuzzyThreshold is the minimum similarity for a fuzzy match.
const DefaultFuzzyThreshold = 0.6

// Resolution is the outcome of resolving one form field.
type Resolution struct {
	Value       any     `json:"value"`
	Confidence  float64 `json:"confidence"`
	MatchedPath string  `json:"matched_path,omitempty"`
	Method      string  `json:"method"`
	NeedsReview bool    `json:"needs_review,omitempty"`
}

// Resolver searches master records for form field values.
type Resolver struct {
	sim       Similarity
	threshold float64
}

// New creates a Resolver. A nil similarity falls back to TokenOverlap; a
// non-positive threshold falls back to DefaultFuzzyThreshold.
func New(sim Similarity, threshold float64) *Resolver {
	if sim == nil {
		sim = TokenOverlap{}
	}
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &Resolver{sim: sim, threshold: threshold}
}

// Resolve finds the best value for one field spec and applies its
// transform. The boolean is false when nothing (not even a default)
// matched.
func (r *Resolver) Resolve(rec *model.MasterRecord, spec model.FormFieldSpec) (Resolution, bool) {
	flat := Flatten(rec)

	res, ok := r.lookup(flat, spec)
	if !ok {
		return Resolution{}, false
	}
	if res.Method == MethodDefault {
		// Defaults are emitted verbatim, never transformed.
		return res, true
	}

	out, review := ApplyTransform(spec.Transform, res.Value)
	res.Value = out
	if review {
		res.NeedsReview = true
		res.Confidence *= reviewPenalty
	}
	return res, true
}

func (r *Resolver) lookup(flat map[string]any, spec model.FormFieldSpec) (Resolution, bool) {
	// 1. Exact dotted-path lookup.
	if v, ok := flat[spec.SourcePath]; ok {
		return Resolution{Value: v, Confidence: 1.0, MatchedPath: spec.SourcePath, Method: MethodExact}, true
	}

	// 2. Aliases in order, first alias assumed the best-known synonym.
	for i, alias := range spec.Aliases {
		if v, ok := flat[alias]; ok {
			conf := firstAliasConfidence - aliasDecay*float64(i)
			if conf < aliasFloor {
				conf = aliasFloor
			}
			return Resolution{Value: v, Confidence: conf, MatchedPath: alias, Method: MethodAlias}, true
		}
	}

	// 3. Fuzzy fallback over every flattened leaf name.
	target := spec.Label
	if target == "" {
		target = spec.ID
	}
	var bestPath string
	var bestScore float64
	for path := range flat {
		score := r.sim.Score(target, leafName(path))
		if full := r.sim.Score(target, path); full > score {
			score = full
		}
		if score > bestScore || (score == bestScore && bestPath != "" && path < bestPath) {
			bestScore, bestPath = score, path
		}
	}
	if bestScore >= r.threshold {
		zap.L().Debug("resolve: fuzzy match",
			zap.String("field", spec.ID),
			zap.String("matched", bestPath),
			zap.Float64("score", bestScore),
		)
		return Resolution{Value: flat[bestPath], Confidence: bestScore, MatchedPath: bestPath, Method: MethodFuzzy}, true
	}

	// 4. Spec default, explicitly flagged as not an extraction.
	if spec.Default != nil {
		return Resolution{Value: *spec.Default, Confidence: 0.0, Method: MethodDefault}, true
	}

	return Resolution{}, false
}

// leafName returns the final path segment, with any array index removed.
func leafName(path string) string {
	leaf := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		leaf = path[i+1:]
	}
	if i := strings.IndexByte(leaf, '['); i >= 0 {
		leaf = leaf[:i]
	}
	return leaf
}
