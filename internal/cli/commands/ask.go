package commands

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/dataexplorer/internal/stream"
	"github.com/spf13/cobra"
)

// AskOptions holds options for the ask command.
type AskOptions struct {
	JSON   bool
	OutDir string
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the event stream",
		Long: `Run the question pipeline once and print each event as it is produced:
narration, the chart (if any) and errors.`,
		Example: `  # Ask a question
  dataexplorer ask "average heart rate by day as a bar chart"

  # Save produced charts and skip the pacing delay
  dataexplorer ask --out charts --pace 0s "steps per week"

  # Print raw events, one JSON object per line
  dataexplorer ask --json "steps per week"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print events as JSON lines")
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "Directory to write produced charts to")
	addPipelineFlags(cmd)

	return cmd
}

// addPipelineFlags registers flags that override pipeline.* settings.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("pace", 0, "Delay before the completion message (default 1s)")
	cmd.Flags().Bool("parallel-intent", false, "Classify chart intent and plan the query concurrently")
	cmd.Flags().Int("repair-attempts", 0, "Ask for a corrected query this many times when execution fails")
}

// ErrQuestionFailed reports that the stream ended with an error event that
// has already been printed.
var ErrQuestionFailed = errors.New("question failed")

func runAsk(cmd *cobra.Command, question string, opts *AskOptions) error {
	app, err := newCommandApp(cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	printer := newEventPrinter(cmd.OutOrStdout(), opts.JSON, opts.OutDir)
	return ask(cmd, app.Pipeline, question, printer)
}

func ask(cmd *cobra.Command, p *stream.Pipeline, question string, printer *eventPrinter) error {
	if err := p.Run(cmd.Context(), question, printer); err != nil {
		return ErrQuestionFailed
	}
	return nil
}
