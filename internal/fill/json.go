package fill

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-lending/intake-cli/internal/distribute"
	"github.com/meridian-lending/intake-cli/internal/model"
)

// WriteJSON writes one JSON file per mapped form plus a mapping summary
// into dir, creating it if needed. Returns the paths written.
func WriteJSON(dir, applicationID string, results []model.MappedFormResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fill: create output dir %s", dir)
	}

	var paths []string
	for _, r := range results {
		path := filepath.Join(dir, r.FormID+".json")
		if err := writeJSONFile(path, r); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	summaryPath := filepath.Join(dir, "mapping_summary.json")
	if err := writeJSONFile(summaryPath, distribute.Summarize(applicationID, results)); err != nil {
		return nil, err
	}
	paths = append(paths, summaryPath)

	zap.L().Info("fill: wrote json outputs",
		zap.String("application", applicationID),
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
	)
	return paths, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "fill: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "fill: write %s", path)
	}
	return nil
}
