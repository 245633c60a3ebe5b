package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/repograph/internal/analysis"
	"github.com/rohankatakam/repograph/internal/llm"
	"github.com/rohankatakam/repograph/internal/mcp"
	"github.com/rohankatakam/repograph/internal/selection"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve repo_graph and explain_file as MCP tools over stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  repo_graph    {url, branch?, format?}  directory graph of a repository
  explain_file  {url, path, branch?}     AI description of one file

explain_file is only offered when a model provider key is configured.
Logs go to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gh, err := newGitHubClient()
	if err != nil {
		return err
	}

	var analyzer selection.Analyzer
	if gen, err := llm.New(ctx, cfg.LLM, logger); err != nil {
		logger.WithError(err).Warn("model provider unavailable; explain_file disabled")
	} else {
		analyzer = analysis.NewService(gen, analysis.WithLogger(logger))
	}

	server := mcp.NewServer(Version, gh, analyzer,
		mcp.WithLogger(logger),
		mcp.WithDefaultBranch(cfg.GitHub.Branch),
		mcp.WithTimeout(cfg.Selection.AnalysisTimeout),
	)
	return server.Run(ctx)
}
