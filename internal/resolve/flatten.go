package resolve

import (
	"fmt"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// shortKeyFields are common identity fields also exposed under their bare
// name in the flattened view, so "ssn" finds identity.applicant.ssn
// without a full path. Kept small to limit collisions.
var shortKeyFields = map[string]bool{
	"name": true, "first": true, "last": true, "first_name": true,
	"last_name": true, "ssn": true, "email": true, "phone": true,
	"address": true, "city": true, "state": true, "zip": true,
	"ein": true, "legal_name": true, "dob": true,
}

// Flatten reduces a master record's nested categories and arrays to a
// single dotted-path → leaf-value map. It is recomputed on every resolve
// call so lookups always reflect the latest record version.
func Flatten(rec *model.MasterRecord) map[string]any {
	flat := make(map[string]any)
	for cat, fields := range rec.Categories {
		flattenValue(flat, cat, fields)
	}
	for name, rows := range rec.Arrays {
		for i, row := range rows {
			prefix := fmt.Sprintf("arrays.%s[%d]", name, i)
			flattenValue(flat, prefix, row)
			// First row also addressable without an index.
			if i == 0 {
				flattenValue(flat, "arrays."+name, row)
			}
		}
	}
	return flat
}

func flattenValue(flat map[string]any, prefix string, v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenValue(flat, key, vv)
			if shortKeyFields[k] && !isContainer(vv) && !isEmptyLeaf(vv) {
				if _, taken := flat[k]; !taken {
					flat[k] = vv
				}
			}
		}
	case []any:
		for i, item := range t {
			flattenValue(flat, fmt.Sprintf("%s[%d]", prefix, i), item)
			if i == 0 && !isContainer(item) && !isEmptyLeaf(item) {
				if _, taken := flat[prefix]; !taken {
					flat[prefix] = item
				}
			}
		}
	default:
		if prefix != "" && !isEmptyLeaf(t) {
			flat[prefix] = t
		}
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func isEmptyLeaf(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
