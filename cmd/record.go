package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/meridian-lending/intake-cli/internal/merge"
	"github.com/meridian-lending/intake-cli/internal/model"
	"github.com/meridian-lending/intake-cli/internal/store"
)

var (
	recordApp     string
	recordVersion int64
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect master records",
	Long:  "Commands for viewing master records, their version history, and conflict summaries.",
}

// -- record get --

var recordGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print a master record as JSON",
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
			return err
		}

		rec, err := fetchRecord(cmd, st)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// -- record versions --

var recordVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List archived versions for an application",
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
			return err
		}

		versions, err := st.ListVersions(ctx, recordApp)
		if err != nil {
			return eris.Wrap(err, "list versions")
		}

		if len(versions) == 0 {
			fmt.Fprintln(os.Stderr, "No versions found.")
			return nil
		}

		for _, v := range versions {
			fmt.Println(v)
		}
		return nil
	},
}

// -- record list --

var recordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known applications",
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
			return err
		}

		apps, err := st.ListApplications(ctx)
		if err != nil {
			return eris.Wrap(err, "list applications")
		}

		if len(apps) == 0 {
			fmt.Fprintln(os.Stderr, "No applications found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "APPLICATION\tVERSION\tDOCS\tCONFLICTS")
		for _, a := range apps {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", a.ApplicationID, a.Version, a.Documents, a.Conflicts)
		}
		return w.Flush()
	},
}

// -- record conflicts --

var recordConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Summarize a record's conflict log",
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
			return err
		}

		rec, err := fetchRecord(cmd, st)
		if err != nil {
			return err
		}

		analysis := merge.Analyze(rec)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	},
}

// fetchRecord resolves the --app/--version flags against the store.
func fetchRecord(cmd *cobra.Command, st store.Store) (*model.MasterRecord, error) {
	ctx := cmd.Context()
	if recordVersion > 0 {
		return st.GetVersion(ctx, recordApp, recordVersion)
	}
	return st.Get(ctx, recordApp)
}

func init() {
	recordCmd.PersistentFlags().StringVar(&recordApp, "app", "", "application ID (required)")
	_ = recordCmd.MarkPersistentFlagRequired("app")

	recordGetCmd.Flags().Int64Var(&recordVersion, "version", 0, "archived version to fetch (default: current)")
	recordConflictsCmd.Flags().Int64Var(&recordVersion, "version", 0, "archived version to analyze (default: current)")

	recordCmd.AddCommand(recordGetCmd, recordVersionsCmd, recordListCmd, recordConflictsCmd)
	rootCmd.AddCommand(recordCmd)
}
