package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/repograph/internal/analysis"
	"github.com/rohankatakam/repograph/internal/config"
	"github.com/rohankatakam/repograph/internal/llm"
	"github.com/rohankatakam/repograph/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis proxy",
	Long: `Start the HTTP analysis proxy.

Endpoints:
  POST /analyze-code   {"code": "..."} -> {"description": "..."} or {"error": "..."}
  GET  /api/graph      ?url=<repository url>&branch=<branch>
  GET  /health

Examples:
  # Serve on the default port (3001) using Gemini
  GEMINI_API_KEY=... repograph serve

  # Serve with OpenAI on another port
  LLM_PROVIDER=openai OPENAI_API_KEY=... repograph serve --addr :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	result := cfg.Validate(config.ValidationContextServe)
	if err := result.AsError(); err != nil {
		return err
	}
	printWarnings(result)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := llm.New(ctx, cfg.LLM, logger)
	if err != nil {
		return err
	}
	svc := analysis.NewService(gen,
		analysis.WithLogger(logger),
		analysis.WithMaxCodeBytes(int(cfg.Server.MaxBodyBytes)),
	)

	gh, err := newGitHubClient()
	if err != nil {
		return err
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	return server.New(cfg.Server, cfg.GitHub.Branch, svc, gh, logger).Run(ctx)
}
