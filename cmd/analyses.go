package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/radius-labs/visibility-cli/internal/crm"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/store"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Inspect stored analyses",
	Long:  "Commands for listing, viewing, and syncing persisted visibility analyses.",
}

// -- analyses list --

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		domain, _ := cmd.Flags().GetString("domain")
		caller, _ := cmd.Flags().GetString("caller")
		status, _ := cmd.Flags().GetString("status")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		// Stored records key on the normalized domain, so normalize the
		// filter too; a raw URL would silently match nothing.
		if domain != "" {
			if norm, err := model.NormalizeDomain(domain); err == nil {
				domain = norm
			}
		}

		filter := store.AnalysisFilter{
			Domain:   domain,
			CallerID: caller,
			Status:   model.AnalysisStatus(status),
			Limit:    limit,
			Offset:   offset,
		}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		recs, err := st.ListAnalyses(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "analyses list")
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses found.")
			return nil
		}

		formatAnalysesList(os.Stdout, recs)
		return nil
	},
}

// -- analyses get --

var analysesGetCmd = &cobra.Command{
	Use:   "get <analysis-id>",
	Short: "Show one analysis in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "analyses get")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// -- analyses sync --

var analysesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Backfill persisted analyses into Salesforce",
	Long:  "Pushes the newest scored analysis for every domain into Salesforce in one batch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !cfg.Salesforce.Enabled {
			return eris.New("salesforce sync is disabled; set salesforce.enabled and credentials first")
		}
		if err := cfg.Validate("analyze"); err != nil {
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

		limit, _ := cmd.Flags().GetInt("limit")
		recs, err := st.ListAnalyses(ctx, store.AnalysisFilter{
			Status: model.StatusPersisted,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "analyses sync")
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses found.")
			return nil
		}

		client, err := crm.Connect(cfg.Salesforce)
		if err != nil {
			return err
		}
		syncer := crm.NewSyncer(client)
		if err := syncer.Preflight(ctx); err != nil {
			return err
		}

		res, err := syncer.SyncAll(ctx, recs)
		if err != nil {
			return eris.Wrap(err, "analyses sync")
		}

		formatSyncResult(os.Stdout, res)
		return nil
	},
}

func init() {
	analysesListCmd.Flags().String("domain", "", "filter by domain")
	analysesListCmd.Flags().String("caller", "", "filter by caller id")
	analysesListCmd.Flags().String("status", "", "filter by status (persisted, failed, crawling, ...)")
	analysesListCmd.Flags().Duration("since", 0, "only analyses newer than this (e.g. 24h, 168h)")
	analysesListCmd.Flags().Int("limit", 50, "max number of analyses to display")
	analysesListCmd.Flags().Int("offset", 0, "number of analyses to skip")

	analysesSyncCmd.Flags().Int("limit", 10000, "max number of analyses to load for the backfill")

	analysesCmd.AddCommand(analysesListCmd)
	analysesCmd.AddCommand(analysesGetCmd)
	analysesCmd.AddCommand(analysesSyncCmd)
	rootCmd.AddCommand(analysesCmd)
}

// formatAnalysesList writes a tabular list of analyses to w. IDs print in
// full: they share a fixed prefix, so a short form would be ambiguous.
func formatAnalysesList(out io.Writer, recs []model.AnalysisRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOMAIN\tSTATUS\tSCORE\tGRADE\tANSWERS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-----\t-----\t-------\t-------")

	for i := range recs {
		r := &recs[i]

		score, grade := "-", "-"
		if s := r.CurrentScore(); s != nil {
			score = fmt.Sprintf("%d", s.Overall)
			grade = s.Grade
		}

		domain := r.Domain
		if len(domain) > 30 {
			domain = domain[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			domain,
			r.Status,
			score,
			grade,
			len(r.Answers.Answers),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatSyncResult writes backfill counts to w.
func formatSyncResult(out io.Writer, res *crm.BatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Created:\t%d\n", res.Created)
	_, _ = fmt.Fprintf(w, "Updated:\t%d\n", res.Updated)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", res.Failed)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", res.Skipped)
	_, _ = fmt.Fprintf(w, "Accounts updated:\t%d\n", res.AccountsUpdated)
	_ = w.Flush()
}
