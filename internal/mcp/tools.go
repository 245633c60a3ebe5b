package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/github"
	"github.com/rohankatakam/repograph/internal/graph"
	"github.com/rohankatakam/repograph/internal/models"
	"github.com/rohankatakam/repograph/internal/selection"
)

// Arguments structs

type RepoGraphArgs struct {
	URL    string `json:"url" jsonschema:"GitHub repository URL, e.g. https://github.com/owner/repo"`
	Branch string `json:"branch,omitempty" jsonschema:"Branch to list; the default branch is used when it does not exist"`
	Format string `json:"format,omitempty" jsonschema:"Output format: json (default) or tree"`
}

type ExplainFileArgs struct {
	URL    string `json:"url" jsonschema:"GitHub repository URL"`
	Path   string `json:"path" jsonschema:"Repository-relative file path, e.g. src/app.js"`
	Branch string `json:"branch,omitempty" jsonschema:"Branch to read from"`
}

// graphResult is the json form of repo_graph
type graphResult struct {
	Repository models.Repository `json:"repository"`
	Branch     string            `json:"branch"`
	Truncated  bool              `json:"truncated"`
	Nodes      []graph.Node      `json:"nodes"`
	Edges      []graph.Edge      `json:"edges"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "repo_graph",
		Description: "Lists a GitHub repository and returns its directory containment graph with node positions",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RepoGraphArgs) (*mcp.CallToolResult, any, error) {
		snap, err := s.snapshot(ctx, args.URL, args.Branch)
		if err != nil {
			return errorResult(errors.UserMessage(err)), nil, nil
		}
		g := graph.Build(snap.Entries)

		switch strings.ToLower(args.Format) {
		case "", "json":
			return jsonResult(graphResult{
				Repository: snap.Repository,
				Branch:     snap.Branch,
				Truncated:  snap.Truncated,
				Nodes:      g.Nodes,
				Edges:      g.Edges,
			})
		case "tree":
			var b strings.Builder
			if err := graph.RenderTree(&b, g); err != nil {
				return errorResult(fmt.Sprintf("Failed to render tree: %v", err)), nil, nil
			}
			return textResult(b.String()), nil, nil
		default:
			return errorResult(fmt.Sprintf("Unknown format %q; use json or tree", args.Format)), nil, nil
		}
	})

	if s.analyzer == nil {
		return
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "explain_file",
		Description: "Fetches one file from a GitHub repository and returns an AI description of what it does",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ExplainFileArgs) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(args.Path) == "" {
			return errorResult("A file path is required."), nil, nil
		}

		snap, err := s.snapshot(ctx, args.URL, args.Branch)
		if err != nil {
			return errorResult(errors.UserMessage(err)), nil, nil
		}

		state, err := s.explain(ctx, snap, strings.Trim(args.Path, "/"))
		if err != nil {
			return errorResult(errors.UserMessage(err)), nil, nil
		}
		switch state.Status {
		case selection.StatusFailed:
			return errorResult(state.Reason), nil, nil
		case selection.StatusIdle:
			return errorResult(fmt.Sprintf("%s is a directory; select a file", args.Path)), nil, nil
		}
		return jsonResult(state)
	})
}

func (s *Server) snapshot(ctx context.Context, rawURL, branch string) (*models.Snapshot, error) {
	owner, name, err := github.ParseRepoURL(rawURL)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		branch = s.branch
	}

	snap, err := s.repos.FetchSnapshot(ctx, owner, name, branch)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"owner": owner,
			"repo":  name,
		}).Error("failed to list repository")
		return nil, err
	}
	return snap, nil
}

// explain drives a single selection to completion on a throwaway controller
func (s *Server) explain(ctx context.Context, snap *models.Snapshot, path string) (selection.State, error) {
	ctrl, err := selection.New(s.analyzer, 1,
		selection.WithTimeout(s.timeout),
		selection.WithLogger(s.logger),
	)
	if err != nil {
		return selection.State{}, err
	}
	defer ctrl.Close()

	ctrl.Load(snap, boundFetcher{repos: s.repos, snap: snap})

	select {
	case <-ctrl.Select(path):
		return ctrl.State(), nil
	case <-ctx.Done():
		return selection.State{}, errors.CanceledError(ctx.Err(), "explain canceled")
	}
}

// boundFetcher reads contents of the listed snapshot
type boundFetcher struct {
	repos Repos
	snap  *models.Snapshot
}

func (f boundFetcher) FetchContent(ctx context.Context, path string) (string, error) {
	r := f.snap.Repository
	return f.repos.FetchContent(ctx, r.Owner, r.Name, path, f.snap.Branch)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to encode result: %v", err)), nil, nil
	}
	return textResult(string(data)), nil, nil
}
