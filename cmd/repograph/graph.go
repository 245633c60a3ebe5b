package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/github"
	"github.com/rohankatakam/repograph/internal/graph"
	"github.com/rohankatakam/repograph/internal/models"
)

var (
	graphBranch string
	graphFormat string
)

var graphCmd = &cobra.Command{
	Use:   "graph <repository url>",
	Short: "Print the directory containment graph of a repository",
	Long: `List a GitHub repository and print its graph.

On a terminal the graph is drawn as a tree; when piped it is written as JSON
with node positions, ready for a renderer.

Examples:
  repograph graph https://github.com/owner/repo
  repograph graph owner/repo --branch develop --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&graphBranch, "branch", "", "branch to list (default: github.branch, falling back to the repository default)")
	graphCmd.Flags().StringVar(&graphFormat, "format", "", "output format: tree, json or yaml (default: tree on a terminal, json otherwise)")
}

// graphDocument is the serialized form of a listed repository
type graphDocument struct {
	Repository models.Repository `json:"repository" yaml:"repository"`
	Branch     string            `json:"branch" yaml:"branch"`
	Truncated  bool              `json:"truncated" yaml:"truncated"`
	Nodes      []graph.Node      `json:"nodes" yaml:"nodes"`
	Edges      []graph.Edge      `json:"edges" yaml:"edges"`
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	snap, _, err := loadSnapshot(ctx, args[0], graphBranch)
	if err != nil {
		return err
	}
	g := graph.Build(snap.Entries)

	format := graphFormat
	if format == "" {
		format = "json"
		if term.IsTerminal(int(os.Stdout.Fd())) {
			format = "tree"
		}
	}

	return writeGraph(cmd.OutOrStdout(), format, snap, g)
}

func writeGraph(w io.Writer, format string, snap *models.Snapshot, g *graph.Graph) error {
	doc := graphDocument{
		Repository: snap.Repository,
		Branch:     snap.Branch,
		Truncated:  snap.Truncated,
		Nodes:      g.Nodes,
		Edges:      g.Edges,
	}

	switch format {
	case "tree":
		fmt.Fprintf(w, "%s @ %s (%d entries)\n", snap.Repository.ID(), snap.Branch, g.Len())
		if snap.Truncated {
			fmt.Fprintln(w, "⚠️  Repository is very large; the file tree is truncated")
		}
		return graph.RenderTree(w, g)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	default:
		return errors.InputErrorf("unknown format %q (expected tree, json or yaml)", format)
	}
}

// loadSnapshot parses the URL and lists the repository. The returned client
// serves content fetches for the same snapshot.
func loadSnapshot(ctx context.Context, rawURL, branch string) (*models.Snapshot, *github.Client, error) {
	owner, name, err := github.ParseRepoURL(rawURL)
	if err != nil {
		return nil, nil, err
	}
	if branch == "" {
		branch = cfg.GitHub.Branch
	}

	gh, err := newGitHubClient()
	if err != nil {
		return nil, nil, err
	}

	snap, err := gh.FetchSnapshot(ctx, owner, name, branch)
	if err != nil {
		logger.WithError(err).Debug("listing failed")
		return nil, nil, fmt.Errorf("%s", errors.UserMessage(err))
	}
	return snap, gh, nil
}
