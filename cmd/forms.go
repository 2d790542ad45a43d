package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Inspect the form spec registry",
}

var formsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered form specs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := initRegistry()
		if err != nil {
			return err
		}

		forms := reg.List()
		if len(forms) == 0 {
			fmt.Fprintln(os.Stderr, "No forms registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FORM\tBANK\tTITLE\tFIELDS")
		for _, f := range forms {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", f.FormID, f.Bank, f.Title, len(f.Fields))
		}
		return w.Flush()
	},
}

var formsShowCmd = &cobra.Command{
	Use:   "show [form-id]",
	Short: "Print one form spec as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := initRegistry()
		if err != nil {
			return err
		}

		spec, ok := reg.Get(args[0])
		if !ok {
			return eris.Errorf("unknown form %q", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	},
}

func init() {
	formsCmd.AddCommand(formsListCmd, formsShowCmd)
	rootCmd.AddCommand(formsCmd)
}
