package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/radius-labs/visibility-cli/internal/knowledge"
)

var improveMode string

var improveCmd = &cobra.Command{
	Use:   "improve [text]",
	Short: "Rewrite a piece of brand text for AI visibility",
	Long: "Rewrites the given text (or stdin when no argument is passed) in the " +
		"requested mode and prints the result to stdout.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode, err := knowledge.ParseImproveMode(improveMode)
		if err != nil {
			return err
		}

		text, err := improveInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Engine.ImproveText(ctx, text, mode)
		if err != nil {
			return eris.Wrap(err, "improve")
		}

		fmt.Fprintln(os.Stdout, out)
		return nil
	},
}

func init() {
	improveCmd.Flags().StringVar(&improveMode, "mode", string(knowledge.ModeImprove),
		"rewrite mode (improve, concise, authoritative, regenerate)")
	rootCmd.AddCommand(improveCmd)
}

// improveInput returns the text to rewrite: the single positional argument
// when present, otherwise everything read from stdin.
func improveInput(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", eris.Wrap(err, "improve: read stdin")
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", eris.New("improve: no text given; pass an argument or pipe to stdin")
	}
	return text, nil
}
