package extract

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// confidenceKeys are the top-level keys under which the model may report
// per-field confidence; they are lifted out of the field bag.
var confidenceKeys = []string{"_confidence", "confidence_scores", "_confidences"}

// metadataKeys are dropped from the field bag entirely.
var metadataKeys = map[string]bool{
	"_metadata": true, "metadata": true, "raw_text": true, "error": true,
}

// cleanJSON strips markdown code fences and any prose surrounding the
// outermost JSON object. Models wrap output unpredictably; this keeps
// decoding tolerant.
func cleanJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// decodeExtraction parses one model response into a field bag and a
// per-field confidence map.
func decodeExtraction(text string) (map[string]any, map[string]float64, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return nil, nil, eris.Wrap(err, "extract: decode model output")
	}

	confidences := make(map[string]float64)
	for _, key := range confidenceKeys {
		sub, ok := raw[key].(map[string]any)
		if !ok {
			continue
		}
		for field, v := range sub {
			if f, ok := toFloat(v); ok && f >= 0 && f <= 1 {
				confidences[field] = f
			}
		}
		delete(raw, key)
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if metadataKeys[k] || v == nil {
			continue
		}
		fields[k] = v
	}
	return fields, confidences, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
