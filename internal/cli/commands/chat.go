package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const chatPrompt = "dataexplorer> "

// NewChatCommand creates the chat command.
func NewChatCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long: `Start an interactive session. Each line is answered like 'ask'.
Type .help for commands, .quit to exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.OutDir, "out", "", "Directory to write produced charts to")
	addPipelineFlags(cmd)

	return cmd
}

func runChat(cmd *cobra.Command, opts *AskOptions) error {
	app, err := newCommandApp(cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	historyFile := ""
	if app.Cfg.Cache.Dir != "" {
		historyFile = filepath.Join(filepath.Dir(app.Cfg.Cache.Dir), "chat_history")
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".datasets"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}
	rlCfg := &readline.Config{
		Prompt:          chatPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	}
	if in := cmd.InOrStdin(); in != os.Stdin {
		rlCfg.Stdin = io.NopCloser(in)
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "dataexplorer chat (%d datasets)\n", len(app.Datasets))
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	printer := newEventPrinter(out, false, opts.OutDir)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := handleChatCommand(out, app, line); quit {
				break
			}
			continue
		}

		// Errors are already printed as events.
		_ = ask(cmd, app.Pipeline, line, printer)
		_, _ = fmt.Fprintln(out)

		if cmd.Context().Err() != nil {
			break
		}
	}

	return nil
}

func handleChatCommand(w io.Writer, app *App, line string) (quit bool) {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		_, _ = fmt.Fprintln(w, `
Commands:
  .help           Show this help message
  .datasets       List configured datasets
  .quit / .exit   Exit

Anything else is asked as a question.`)
	case ".datasets":
		for _, id := range app.Datasets {
			_, _ = fmt.Fprintln(w, "  "+id.String())
		}
	default:
		_, _ = fmt.Fprintf(w, "Unknown command: %s (type .help for commands)\n", line)
	}
	return false
}
