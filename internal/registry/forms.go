// Package registry loads and indexes bank form specifications from YAML.
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// Registry holds the loaded form specs indexed by form ID.
type Registry struct {
	forms map[string]model.FormSpec
	order []string
}

// LoadDir reads every .yaml/.yml file under dir as a FormSpec and
// returns an indexed registry. Duplicate form IDs are an error.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read form directory %s", dir)
	}

	r := &Registry{forms: make(map[string]model.FormSpec)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		spec, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := r.forms[spec.FormID]; dup {
			return nil, eris.Errorf("registry: duplicate form id %q in %s", spec.FormID, e.Name())
		}
		r.forms[spec.FormID] = spec
		r.order = append(r.order, spec.FormID)
	}
	sort.Strings(r.order)

	zap.L().Info("registry: loaded form specs",
		zap.String("dir", dir),
		zap.Int("forms", len(r.order)),
	)
	return r, nil
}

// LoadFile reads and validates a single form spec.
func LoadFile(path string) (model.FormSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FormSpec{}, eris.Wrapf(err, "registry: read form spec %s", path)
	}

	var spec model.FormSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return model.FormSpec{}, eris.Wrapf(err, "registry: parse form spec %s", path)
	}
	if err := validate(spec); err != nil {
		return model.FormSpec{}, eris.Wrapf(err, "registry: invalid form spec %s", path)
	}
	return spec, nil
}

// NewFromSpecs builds a registry from in-memory specs, mainly for tests
// and embedded defaults.
func NewFromSpecs(specs ...model.FormSpec) (*Registry, error) {
	r := &Registry{forms: make(map[string]model.FormSpec)}
	for _, spec := range specs {
		if err := validate(spec); err != nil {
			return nil, eris.Wrapf(err, "registry: invalid form spec %q", spec.FormID)
		}
		if _, dup := r.forms[spec.FormID]; dup {
			return nil, eris.Errorf("registry: duplicate form id %q", spec.FormID)
		}
		r.forms[spec.FormID] = spec
		r.order = append(r.order, spec.FormID)
	}
	sort.Strings(r.order)
	return r, nil
}

// Get returns the spec for a form ID.
func (r *Registry) Get(formID string) (model.FormSpec, bool) {
	spec, ok := r.forms[formID]
	return spec, ok
}

// List returns all specs sorted by form ID.
func (r *Registry) List() []model.FormSpec {
	out := make([]model.FormSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.forms[id])
	}
	return out
}

// IDs returns the sorted form IDs.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// ByBank returns the specs registered for one bank, sorted by form ID.
func (r *Registry) ByBank(bank string) []model.FormSpec {
	var out []model.FormSpec
	for _, id := range r.order {
		if strings.EqualFold(r.forms[id].Bank, bank) {
			out = append(out, r.forms[id])
		}
	}
	return out
}

var validTransforms = map[model.Transform]bool{
	model.TransformNone:       true,
	model.TransformCurrency:   true,
	model.TransformPercentage: true,
	model.TransformSSN:        true,
	model.TransformDate:       true,
}

func validate(spec model.FormSpec) error {
	if spec.FormID == "" {
		return eris.New("missing form_id")
	}
	if len(spec.Fields) == 0 {
		return eris.New("no fields")
	}

	seen := make(map[string]bool, len(spec.Fields))
	for i, f := range spec.Fields {
		if f.ID == "" {
			return eris.Errorf("field %d: missing id", i)
		}
		if seen[f.ID] {
			return eris.Errorf("field %q: duplicate id", f.ID)
		}
		seen[f.ID] = true
		if f.SourcePath == "" {
			return eris.Errorf("field %q: missing source_path", f.ID)
		}
		if f.Transform != "" && !validTransforms[f.Transform] {
			return eris.Errorf("field %q: unknown transform %q", f.ID, f.Transform)
		}
	}

	if tpl := spec.Template; tpl != nil {
		if tpl.Path == "" {
			return eris.New("template: missing path")
		}
		if len(tpl.Cells) == 0 {
			return eris.New("template: no cells mapped")
		}
		for fieldID := range tpl.Cells {
			if !seen[fieldID] {
				return eris.Errorf("template: cell mapping for unknown field %q", fieldID)
			}
		}
	}
	return nil
}
