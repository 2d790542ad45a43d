// Package fill writes mapped form results out to artifacts: filled
// spreadsheets, JSON exports, and (through an interface) PDF forms.
package fill

import (
	"context"
	"strings"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// PDFFormWriter fills a PDF form template from a mapped result. Actual
// PDF writing lives outside this module; callers inject an implementation.
type PDFFormWriter interface {
	Fill(ctx context.Context, templatePath, outputPath string, result model.MappedFormResult) error
}

// DefaultCheckboxTokens are the values that tick a checkbox field when
// no form-specific token set is given.
var DefaultCheckboxTokens = map[string]bool{
	"yes":     true,
	"true":    true,
	"x":       true,
	"checked": true,
	"on":      true,
	"1":       true,
}

// CheckboxChecked reports whether a resolved value should tick a
// checkbox. Booleans are taken as-is; strings and numbers are matched
// against the token set. Forms with their own checkbox vocabulary pass
// it in; nil falls back to DefaultCheckboxTokens.
func CheckboxChecked(v any, tokens map[string]bool) bool {
	if tokens == nil {
		tokens = DefaultCheckboxTokens
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return tokens[strings.ToLower(strings.TrimSpace(t))]
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}
