package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-lending/intake-cli/internal/distribute"
	"github.com/meridian-lending/intake-cli/internal/fill"
	"github.com/meridian-lending/intake-cli/internal/model"
)

var (
	distApp   string
	distOut   string
	distForms []string
	distBank  string
	distXLSX  string
)

var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Map a master record onto bank forms and write the outputs",
	Long:  "Resolves each form's fields against the application's current master record, writes one JSON file per form plus a mapping summary, and optionally a summary workbook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		reg, err := initRegistry()
		if err != nil {
			return err
		}

		forms, err := selectForms(reg, distForms, distBank)
		if err != nil {
			return err
		}

		svc := initService(st)

		results, err := svc.GenerateOutputs(ctx, distApp, forms)
		if err != nil {
			return eris.Wrap(err, "generate outputs")
		}

		paths, err := fill.WriteJSON(distOut, distApp, results)
		if err != nil {
			return eris.Wrap(err, "write outputs")
		}

		if distXLSX != "" {
			if err := fill.WriteSummaryWorkbook(distXLSX, distApp, results); err != nil {
				return eris.Wrap(err, "write summary workbook")
			}
			paths = append(paths, distXLSX)
		}

		filled, err := fillTemplates(distOut, cfg.Forms.Dir, forms, results)
		if err != nil {
			return eris.Wrap(err, "fill templates")
		}
		paths = append(paths, filled...)

		summary := distribute.Summarize(distApp, results)
		zap.L().Info("distribution complete",
			zap.String("application", distApp),
			zap.Int("forms", summary.TotalForms),
			zap.Int("fields_mapped", summary.TotalFieldsMapped),
			zap.Float64("average_coverage", summary.AverageCoverage),
			zap.Strings("files", paths),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

// selectForms narrows the registry by explicit IDs or bank name; with
// neither, every registered form is mapped.
func selectForms(reg formLister, ids []string, bank string) ([]model.FormSpec, error) {
	if len(ids) > 0 {
		forms := make([]model.FormSpec, 0, len(ids))
		for _, id := range ids {
			spec, ok := reg.Get(id)
			if !ok {
				return nil, eris.Errorf("unknown form %q", id)
			}
			forms = append(forms, spec)
		}
		return forms, nil
	}
	if bank != "" {
		forms := reg.ByBank(bank)
		if len(forms) == 0 {
			return nil, eris.Errorf("no forms registered for bank %q", bank)
		}
		return forms, nil
	}
	return reg.List(), nil
}

// fillTemplates writes a filled workbook for every mapped form whose
// spec declares a sheet template. Template paths resolve relative to
// the form directory; outputs land next to the JSON files.
func fillTemplates(outDir, formsDir string, forms []model.FormSpec, results []model.MappedFormResult) ([]string, error) {
	byForm := make(map[string]model.MappedFormResult, len(results))
	for _, r := range results {
		byForm[r.FormID] = r
	}

	var paths []string
	for _, f := range forms {
		if f.Template == nil {
			continue
		}
		result, ok := byForm[f.FormID]
		if !ok {
			continue
		}

		tplPath := f.Template.Path
		if !filepath.IsAbs(tplPath) {
			tplPath = filepath.Join(formsDir, tplPath)
		}
		outPath := filepath.Join(outDir, f.FormID+"_filled.xlsx")

		layout := fill.SheetLayout{Sheet: f.Template.Sheet, Cells: f.Template.Cells}
		if err := fill.FillTemplate(tplPath, outPath, layout, result); err != nil {
			return nil, eris.Wrapf(err, "form %s", f.FormID)
		}
		paths = append(paths, outPath)
	}
	return paths, nil
}

type formLister interface {
	Get(formID string) (model.FormSpec, bool)
	ByBank(bank string) []model.FormSpec
	List() []model.FormSpec
}

func init() {
	distributeCmd.Flags().StringVar(&distApp, "app", "", "application ID (required)")
	distributeCmd.Flags().StringVar(&distOut, "out", "output", "output directory for form JSON files")
	distributeCmd.Flags().StringSliceVar(&distForms, "form", nil, "form IDs to map (default: all)")
	distributeCmd.Flags().StringVar(&distBank, "bank", "", "map only forms for this bank")
	distributeCmd.Flags().StringVar(&distXLSX, "xlsx", "", "also write a summary workbook to this path")
	_ = distributeCmd.MarkFlagRequired("app")
	rootCmd.AddCommand(distributeCmd)
}
