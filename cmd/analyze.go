package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/model"
)

var analyzeCaller string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <domain>",
	Short: "Run a full visibility analysis for a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Engine.Submit(ctx, args[0], analyzeCaller)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		fields := []zap.Field{
			zap.String("analysis_id", rec.ID),
			zap.String("domain", rec.Domain),
			zap.String("status", string(rec.Status)),
			zap.Bool("cached", rec.Provenance.UsedCache),
			zap.Int("simulated_answers", rec.Answers.SimulatedCount()),
			zap.Float64("cost_usd", rec.CostUSD),
		}
		if score := rec.CurrentScore(); score != nil {
			fields = append(fields,
				zap.Int("overall", score.Overall),
				zap.String("grade", score.Grade),
			)
		}
		zap.L().Info("analysis complete", fields...)

		if rec.Status == model.StatusPersisted && !rec.Provenance.UsedCache {
			syncToCRM(ctx, env.Syncer, rec)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCaller, "caller", "", "caller id; repeat runs inside the reuse window return the same analysis")
	rootCmd.AddCommand(analyzeCmd)
}
