package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/models"
	"github.com/rohankatakam/repograph/internal/selection"
)

type fakeRepos struct {
	snap     *models.Snapshot
	err      error
	contents map[string]string
	branches []string
}

func (f *fakeRepos) FetchSnapshot(ctx context.Context, owner, name, branch string) (*models.Snapshot, error) {
	f.branches = append(f.branches, branch)
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *fakeRepos) FetchContent(ctx context.Context, owner, name, path, ref string) (string, error) {
	c, ok := f.contents[path]
	if !ok {
		return "", errors.ContentFetchError(fmt.Errorf("404"), "fetch content")
	}
	return c, nil
}

type echoAnalyzer struct{}

func (echoAnalyzer) Analyze(ctx context.Context, code string) (string, error) {
	return "This file says " + code + ".", nil
}

func demoSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Repository: models.Repository{Owner: "octo", Name: "demo"},
		Branch:     "main",
		Entries: []models.RepoEntry{
			{Path: "src", Kind: models.KindDirectory},
			{Path: "src/app.txt", Kind: models.KindFile},
		},
	}
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestTools_Listed(t *testing.T) {
	session := connect(t, NewServer("test", &fakeRepos{}, echoAnalyzer{}))

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"repo_graph", "explain_file"}, names)
}

func TestTools_NoAnalyzerOmitsExplain(t *testing.T) {
	session := connect(t, NewServer("test", &fakeRepos{}, nil))

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Tools, 1)
	assert.Equal(t, "repo_graph", res.Tools[0].Name)
}

func TestRepoGraph_JSON(t *testing.T) {
	repos := &fakeRepos{snap: demoSnapshot()}
	session := connect(t, NewServer("test", repos, nil, WithDefaultBranch("main")))

	text, isErr := call(t, session, "repo_graph", map[string]any{"url": "https://github.com/octo/demo"})
	require.False(t, isErr, text)

	var out graphResult
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "main", out.Branch)
	require.Len(t, out.Nodes, 2)
	require.Len(t, out.Edges, 1)
	assert.Equal(t, "src", out.Edges[0].Source)
	assert.Equal(t, "src/app.txt", out.Edges[0].Target)
	assert.Equal(t, []string{"main"}, repos.branches)
}

func TestRepoGraph_Tree(t *testing.T) {
	session := connect(t, NewServer("test", &fakeRepos{snap: demoSnapshot()}, nil))

	text, isErr := call(t, session, "repo_graph", map[string]any{"url": "octo/demo", "format": "tree"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "src")
	assert.Contains(t, text, "app.txt")
}

func TestRepoGraph_Errors(t *testing.T) {
	listing := &fakeRepos{err: errors.ListingError(fmt.Errorf("404"), "list repository")}

	tests := []struct {
		name  string
		repos *fakeRepos
		args  map[string]any
		want  string
	}{
		{"bad url", &fakeRepos{}, map[string]any{"url": "not a url"}, "invalid GitHub URL"},
		{"listing", listing, map[string]any{"url": "octo/demo"}, "Could not load the repository. Check the URL and try again."},
		{"format", &fakeRepos{snap: demoSnapshot()}, map[string]any{"url": "octo/demo", "format": "svg"}, "Unknown format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := connect(t, NewServer("test", tt.repos, nil))
			text, isErr := call(t, session, "repo_graph", tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestExplainFile_Ready(t *testing.T) {
	repos := &fakeRepos{snap: demoSnapshot(), contents: map[string]string{"src/app.txt": "hello"}}
	session := connect(t, NewServer("test", repos, echoAnalyzer{}))

	text, isErr := call(t, session, "explain_file", map[string]any{"url": "octo/demo", "path": "src/app.txt"})
	require.False(t, isErr, text)

	var out struct {
		Status         string `json:"status"`
		Path           string `json:"path"`
		Content        string `json:"content"`
		Classification string `json:"classification"`
		Description    string `json:"description"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "ready", out.Status)
	assert.Equal(t, "src/app.txt", out.Path)
	assert.Equal(t, "hello", out.Content)
	assert.Equal(t, "text", out.Classification)
	assert.Equal(t, "This file says hello.", out.Description)
}

func TestExplainFile_Failures(t *testing.T) {
	snap := demoSnapshot()
	snap.Entries = append(snap.Entries, models.RepoEntry{Path: "src/gone.go", Kind: models.KindFile})
	repos := &fakeRepos{snap: snap, contents: map[string]string{}}
	session := connect(t, NewServer("test", repos, echoAnalyzer{}))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"directory", "src", "is a directory"},
		{"missing content", "src/gone.go", "Could not load the file contents from the repository."},
		{"unknown path", "nope.go", "not part of the loaded repository"},
		{"empty path", "  ", "A file path is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, session, "explain_file", map[string]any{"url": "octo/demo", "path": tt.path})
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestExplainFile_Binary(t *testing.T) {
	snap := demoSnapshot()
	snap.Entries = append(snap.Entries, models.RepoEntry{Path: "logo.png", Kind: models.KindFile})
	session := connect(t, NewServer("test", &fakeRepos{snap: snap}, echoAnalyzer{}))

	text, isErr := call(t, session, "explain_file", map[string]any{"url": "octo/demo", "path": "logo.png"})
	require.False(t, isErr, text)
	assert.Contains(t, text, selection.BinaryDescription)
}
