package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/model"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Manage evidence attached to an analysis",
	Long:  "Commands for adding and removing owner-supplied evidence on a stored analysis.",
}

// -- evidence add --

var evidenceAddCmd = &cobra.Command{
	Use:   "add <analysis-id>",
	Short: "Attach an evidence item to an analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		evType, _ := cmd.Flags().GetString("type")
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		source, _ := cmd.Flags().GetString("source")

		env, err := initEngine(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		item, err := env.Engine.AddEvidence(ctx, args[0], model.EvidenceItem{
			Type:    model.EvidenceType(evType),
			Title:   title,
			Content: content,
			Source:  source,
		})
		if err != nil {
			return eris.Wrap(err, "evidence add")
		}

		zap.L().Info("evidence added",
			zap.String("analysis_id", args[0]),
			zap.String("evidence_id", item.ID),
			zap.String("type", string(item.Type)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(item)
	},
}

// -- evidence delete --

var evidenceDeleteCmd = &cobra.Command{
	Use:   "delete <analysis-id> <evidence-id>",
	Short: "Remove an evidence item from an analysis",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Engine.DeleteEvidence(ctx, args[0], args[1]); err != nil {
			return eris.Wrap(err, "evidence delete")
		}

		zap.L().Info("evidence deleted",
			zap.String("analysis_id", args[0]),
			zap.String("evidence_id", args[1]),
		)
		return nil
	},
}

func init() {
	evidenceAddCmd.Flags().String("type", string(model.EvidenceCustomNote),
		"evidence type (case-study, review, statistic, custom-note)")
	evidenceAddCmd.Flags().String("title", "", "short evidence title")
	evidenceAddCmd.Flags().String("content", "", "evidence body text")
	evidenceAddCmd.Flags().String("source", "", "optional source URL")

	evidenceCmd.AddCommand(evidenceAddCmd)
	evidenceCmd.AddCommand(evidenceDeleteCmd)
	rootCmd.AddCommand(evidenceCmd)
}
