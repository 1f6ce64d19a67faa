package commands

import (
	"fmt"

	"github.com/leapstack-labs/dataexplorer/internal/auth"
	"github.com/leapstack-labs/dataexplorer/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. POST /api/chat streams the answer to a question as
server-sent events; /api/login, /api/datasets and /api/health support the
front end.`,
		Example: `  # Serve on the configured address (default :3001)
  dataexplorer serve

  # Serve on another port and require login
  dataexplorer serve --addr :8080 --auth-required`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default :3001)")
	cmd.Flags().Bool("auth-required", false, "Require a login token or session for /api/chat")
	addPipelineFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := newCommandApp(cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	cfg := app.Cfg
	datasets := make([]string, 0, len(app.Datasets))
	for _, id := range app.Datasets {
		datasets = append(datasets, id.String())
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		Runner:         app.Pipeline,
		Identities:     auth.NewStaticStore(cfg.Auth.Users),
		Tokens:         auth.NewTokens(0, 0),
		Datasets:       datasets,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SessionSecret:  cfg.Server.SessionSecret,
		AuthRequired:   cfg.Auth.Required,
		Logger:         app.Logger,
	})

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s (%d datasets)\n", cfg.Server.Addr, len(datasets))
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return srv.Serve(cmd.Context())
}
