// Package mcp exposes the repository graph and file explanations as Model
// Context Protocol tools.
package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/logging"
	"github.com/rohankatakam/repograph/internal/models"
	"github.com/rohankatakam/repograph/internal/selection"
)

const serverName = "repograph"

// Repos lists repositories and fetches file contents
type Repos interface {
	FetchSnapshot(ctx context.Context, owner, name, branch string) (*models.Snapshot, error)
	FetchContent(ctx context.Context, owner, name, path, ref string) (string, error)
}

// Server wraps an MCP server with the repograph tools registered
type Server struct {
	mcpServer *mcp.Server
	repos     Repos
	analyzer  selection.Analyzer
	branch    string
	timeout   time.Duration
	logger    *logrus.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger. Stdio servers must not log to stdout.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithDefaultBranch sets the branch listed when a tool call names none
func WithDefaultBranch(branch string) Option {
	return func(s *Server) { s.branch = branch }
}

// WithTimeout bounds one explain_file call
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer creates the MCP server. analyzer may be nil, in which case
// explain_file is not offered.
func NewServer(version string, repos Repos, analyzer selection.Analyzer, opts ...Option) *Server {
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil),
		repos:     repos,
		analyzer:  analyzer,
		timeout:   selection.DefaultTimeout,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server, e.g. to connect a custom transport
func (s *Server) MCP() *mcp.Server {
	return s.mcpServer
}

// Run serves over stdin/stdout until ctx ends or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
