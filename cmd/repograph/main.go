package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/repograph/internal/config"
	"github.com/rohankatakam/repograph/internal/github"
	"github.com/rohankatakam/repograph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile   string
	verbose   bool
	logger    *logrus.Logger
	logCloser io.Closer
	cfg       *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "repograph",
	Short: "RepoGraph - explore a GitHub repository as a graph and explain its files",
	Long: `RepoGraph lists a GitHub repository, lays it out as a directory
containment graph and asks a language model to explain the files you select.

Run 'repograph serve' to start the analysis proxy, then use 'graph' and
'explain' against any public repository.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config, using defaults: %v\n", err)
			cfg = config.Default()
		}

		logCfg := logging.Config{
			Level:      cfg.Log.Level,
			OutputFile: cfg.Log.File,
			JSONFormat: cfg.Log.JSON,
		}
		if verbose {
			logCfg.Level = "debug"
		}
		logger, logCloser, err = logging.New(logCfg)
		if err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .repograph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`RepoGraph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configureCmd)
}

// newGitHubClient builds the listing/content client from the loaded config
func newGitHubClient() (*github.Client, error) {
	opts := []github.Option{github.WithLogger(logger)}
	if cfg.GitHub.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.GitHub.BaseURL))
	}
	client, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.RateLimit, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}
	return client, nil
}

// printWarnings surfaces non-fatal validation findings
func printWarnings(result *config.ValidationResult) {
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
}
