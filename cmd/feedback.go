package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var feedbackSets []string

var feedbackCmd = &cobra.Command{
	Use:   "feedback <analysis-id>",
	Short: "Correct knowledge fields and rescore an analysis",
	Long: "Applies owner corrections to the knowledge profile of a stored analysis " +
		"and appends a new score version computed from the corrected profile.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		patches, err := parseFieldPatches(feedbackSets)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		score, err := env.Engine.SubmitFeedback(ctx, args[0], patches)
		if err != nil {
			return eris.Wrap(err, "feedback")
		}

		zap.L().Info("feedback applied",
			zap.String("analysis_id", args[0]),
			zap.Int("score_version", score.Version),
			zap.Int("overall", score.Overall),
			zap.String("grade", score.Grade),
		)

		if rec, err := env.Engine.GetAnalysis(ctx, args[0]); err == nil {
			syncToCRM(ctx, env.Syncer, rec)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(score)
	},
}

func init() {
	feedbackCmd.Flags().StringArrayVar(&feedbackSets, "set", nil,
		"field=value correction, repeatable (overview, products_and_services, target_customers, positioning, brand_tone)")
	rootCmd.AddCommand(feedbackCmd)
}

// parseFieldPatches turns repeated field=value flags into a patch map.
func parseFieldPatches(sets []string) (map[string]string, error) {
	if len(sets) == 0 {
		return nil, eris.New("feedback: at least one --set field=value is required")
	}
	patches := make(map[string]string, len(sets))
	for _, s := range sets {
		field, value, ok := strings.Cut(s, "=")
		if !ok || field == "" {
			return nil, eris.Errorf("feedback: malformed --set %q, want field=value", s)
		}
		patches[field] = value
	}
	return patches, nil
}
