package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/repograph/internal/analysis"
	"github.com/rohankatakam/repograph/internal/config"
	"github.com/rohankatakam/repograph/internal/filetype"
	"github.com/rohankatakam/repograph/internal/github"
	"github.com/rohankatakam/repograph/internal/llm"
	"github.com/rohankatakam/repograph/internal/proxyclient"
	"github.com/rohankatakam/repograph/internal/selection"
)

var (
	explainBranch  string
	explainLocal   bool
	explainJSON    bool
	explainContent bool
)

var explainCmd = &cobra.Command{
	Use:   "explain <repository url> <path>...",
	Short: "Explain one or more files of a repository",
	Long: `Select files of a repository one after another and print the AI
description of each.

By default descriptions come from the analysis proxy at selection.proxy_url
(see 'repograph serve'). With --local the model provider is called directly.

Examples:
  repograph explain https://github.com/owner/repo src/app.js
  repograph explain owner/repo cmd/main.go internal/server/server.go --local`,
	Args: cobra.MinimumNArgs(2),
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().StringVar(&explainBranch, "branch", "", "branch to read from")
	explainCmd.Flags().BoolVar(&explainLocal, "local", false, "call the model provider directly instead of the proxy")
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "print each selection state as JSON")
	explainCmd.Flags().BoolVar(&explainContent, "show-content", false, "print the file contents with the description")
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	analyzer, err := newAnalyzer(ctx)
	if err != nil {
		return err
	}

	snap, gh, err := loadSnapshot(ctx, args[0], explainBranch)
	if err != nil {
		return err
	}

	ctrl, err := selection.New(analyzer, cfg.Selection.CacheSize,
		selection.WithTimeout(cfg.Selection.AnalysisTimeout),
		selection.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctrl.Load(snap, github.ContentFetcher{
		Client: gh,
		Owner:  snap.Repository.Owner,
		Repo:   snap.Repository.Name,
		Ref:    snap.Branch,
	})

	unsubscribe := ctrl.Subscribe(func(s selection.State) {
		if s.Status == selection.StatusLoading {
			fmt.Fprintf(os.Stderr, "⏳ Analyzing %s...\n", s.Path)
		}
	})
	defer unsubscribe()

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args[1:] {
		select {
		case <-ctrl.Select(path):
		case <-ctx.Done():
			return ctx.Err()
		}

		state := ctrl.State()
		if state.Status == selection.StatusFailed {
			failed++
		}
		if err := printState(out, path, state); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d selections failed", failed, len(args)-1)
	}
	return nil
}

// newAnalyzer returns the proxy client, or the in-process service with --local
func newAnalyzer(ctx context.Context) (selection.Analyzer, error) {
	if !explainLocal {
		result := cfg.Validate(config.ValidationContextExplore)
		if err := result.AsError(); err != nil {
			return nil, err
		}
		printWarnings(result)
		return proxyclient.New(cfg.Selection.ProxyURL, proxyclient.WithLogger(logger)), nil
	}

	gen, err := llm.New(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	return analysis.NewService(gen, analysis.WithLogger(logger)), nil
}

func printState(w io.Writer, path string, s selection.State) error {
	if explainJSON {
		if !explainContent {
			s.Content = nil
		}
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	switch s.Status {
	case selection.StatusIdle:
		fmt.Fprintf(w, "📁 %s is a directory\n\n", path)
	case selection.StatusFailed:
		fmt.Fprintf(w, "❌ %s\n   %s\n\n", s.Path, s.Reason)
	case selection.StatusReady:
		fmt.Fprintf(w, "📄 %s (%s)\n", s.Path, filetype.DetectLanguage(s.Path))
		fmt.Fprintf(w, "%s\n", s.Description)
		if explainContent && s.Content != nil {
			fmt.Fprintf(w, "\n%s\n", *s.Content)
		}
		fmt.Fprintln(w)
	}
	return nil
}
