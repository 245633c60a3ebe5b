package github

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/logging"
	"github.com/rohankatakam/repograph/internal/models"
)

// DefaultMaxContentBytes bounds raw file downloads
const DefaultMaxContentBytes = 5 * 1024 * 1024

// Client wraps the GitHub API client with rate limiting
type Client struct {
	client          *github.Client
	rateLimiter     *rate.Limiter
	logger          *logrus.Logger
	maxContentBytes int
}

// Option configures a Client
type Option func(*Client) error

// WithBaseURL points the client at a different API root (GitHub Enterprise, tests)
func WithBaseURL(base string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		c.client.BaseURL = u
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithMaxContentBytes bounds raw content downloads
func WithMaxContentBytes(n int) Option {
	return func(c *Client) error {
		c.maxContentBytes = n
		return nil
	}
}

// NewClient creates a new GitHub client with rate limiting.
// An empty token makes unauthenticated requests.
func NewClient(token string, rateLimit int, opts ...Option) (*Client, error) {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if rateLimit <= 0 {
		rateLimit = 10
	}

	c := &Client{
		client:          client,
		rateLimiter:     rate.NewLimiter(rate.Limit(rateLimit), 1),
		logger:          logging.Discard(),
		maxContentBytes: DefaultMaxContentBytes,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FetchRepository gets repository metadata
func (c *Client) FetchRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, errors.ListingError(err, describe(err, "fetch repository"))
	}

	return &models.Repository{
		Owner:         owner,
		Name:          name,
		FullName:      repo.GetFullName(),
		URL:           repo.GetHTMLURL(),
		DefaultBranch: repo.GetDefaultBranch(),
		Description:   repo.GetDescription(),
		Language:      repo.GetLanguage(),
	}, nil
}

// FetchTree retrieves the recursive flat listing of a branch. A truncated
// listing is returned as-is with truncated=true; no paging is attempted.
func (c *Client) FetchTree(ctx context.Context, owner, name, branch string) ([]models.RepoEntry, bool, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limiter: %w", err)
	}

	tree, _, err := c.client.Git.GetTree(ctx, owner, name, branch, true)
	if err != nil {
		return nil, false, errors.ListingError(err, describe(err, "fetch tree")).
			WithContext("branch", branch)
	}

	entries := make([]models.RepoEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		e := models.RepoEntry{Path: entry.GetPath()}
		switch entry.GetType() {
		case "blob":
			e.Kind = models.KindFile
			if entry.Size != nil {
				size := int64(entry.GetSize())
				e.Size = &size
			}
		default:
			// "tree", and "commit" for submodules
			e.Kind = models.KindDirectory
		}
		entries = append(entries, e)
	}

	truncated := tree.GetTruncated()
	if truncated {
		c.logger.WithFields(logrus.Fields{
			"owner":   owner,
			"repo":    name,
			"branch":  branch,
			"entries": len(entries),
		}).Warn("repository is very large; file tree truncated")
	}

	return entries, truncated, nil
}

// FetchSnapshot fetches repository metadata and the listing concurrently.
// If the requested branch does not exist the repository's default branch is
// used instead. An empty branch means the default branch.
func (c *Client) FetchSnapshot(ctx context.Context, owner, name, branch string) (*models.Snapshot, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{"owner": owner, "repo": name, "branch": branch})

	var (
		repo      *models.Repository
		entries   []models.RepoEntry
		truncated bool
		treeErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := c.FetchRepository(gctx, owner, name)
		if err != nil {
			return err
		}
		repo = r
		return nil
	})
	if branch != "" {
		g.Go(func() error {
			// A missing branch is recoverable once metadata arrives
			entries, truncated, treeErr = c.FetchTree(gctx, owner, name, branch)
			if treeErr != nil && !isNotFound(treeErr) {
				return treeErr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("repository listing failed")
		return nil, err
	}

	resolved := branch
	if branch == "" || treeErr != nil {
		if repo.DefaultBranch == "" || repo.DefaultBranch == branch {
			if treeErr == nil {
				treeErr = errors.ListingError(fmt.Errorf("%s/%s has no default branch", owner, name), "resolve branch")
			}
			log.WithError(treeErr).Error("branch not found and no fallback available")
			return nil, treeErr
		}
		if branch != "" {
			log.WithField("default_branch", repo.DefaultBranch).Info("branch not found, using default branch")
		}
		resolved = repo.DefaultBranch

		var err error
		entries, truncated, err = c.FetchTree(ctx, owner, name, resolved)
		if err != nil {
			log.WithError(err).Error("repository listing failed")
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"resolved_branch": resolved,
		"entries":         len(entries),
		"truncated":       truncated,
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("repository listing fetched")

	return &models.Snapshot{
		Repository: *repo,
		Branch:     resolved,
		Entries:    entries,
		Truncated:  truncated,
		FetchedAt:  time.Now(),
	}, nil
}

// FetchContent retrieves the raw text of a file at ref
func (c *Client) FetchContent(ctx context.Context, owner, name, path, ref string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", errors.ContentFetchError(err, "rate limiter")
	}

	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := c.client.Repositories.GetContents(ctx, owner, name, path, opts)
	if err != nil {
		return "", errors.ContentFetchError(err, describe(err, "fetch content")).WithContext("path", path)
	}
	if file == nil {
		return "", errors.ContentFetchError(fmt.Errorf("%s is a directory", path), "fetch content")
	}
	if c.maxContentBytes > 0 && file.GetSize() > c.maxContentBytes {
		return "", errors.OversizedError(nil, fmt.Sprintf("file %s is %d bytes (limit %d)", path, file.GetSize(), c.maxContentBytes))
	}

	// Files over 1 MB come back with encoding "none" and must be downloaded
	if file.GetEncoding() == "none" && file.GetDownloadURL() != "" {
		return c.download(ctx, file.GetDownloadURL(), path)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", errors.ContentFetchError(err, "decode content").WithContext("path", path)
	}
	return content, nil
}

func (c *Client) download(ctx context.Context, downloadURL, path string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", errors.ContentFetchError(err, "rate limiter")
	}

	req, err := c.client.NewRequest(http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", errors.ContentFetchError(err, "build download request")
	}

	var buf bytes.Buffer
	if _, err := c.client.Do(ctx, req, &buf); err != nil {
		return "", errors.ContentFetchError(err, describe(err, "download content")).WithContext("path", path)
	}
	if c.maxContentBytes > 0 && buf.Len() > c.maxContentBytes {
		return "", errors.OversizedError(nil, fmt.Sprintf("file %s exceeds %d bytes", path, c.maxContentBytes))
	}
	return buf.String(), nil
}

// ContentFetcher binds a client to one repository snapshot so callers only
// pass paths.
type ContentFetcher struct {
	Client *Client
	Owner  string
	Repo   string
	Ref    string
}

// FetchContent retrieves the raw text of path in the bound repository
func (f ContentFetcher) FetchContent(ctx context.Context, path string) (string, error) {
	return f.Client.FetchContent(ctx, f.Owner, f.Repo, path, f.Ref)
}

func isNotFound(err error) bool {
	var ger *github.ErrorResponse
	if stderrors.As(err, &ger) && ger.Response != nil {
		return ger.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// describe names the upstream failure so logs distinguish quota exhaustion
// from missing repositories.
func describe(err error, op string) string {
	var rle *github.RateLimitError
	if stderrors.As(err, &rle) {
		return op + " (GitHub rate limit exceeded)"
	}
	var abuse *github.AbuseRateLimitError
	if stderrors.As(err, &abuse) {
		return op + " (GitHub secondary rate limit)"
	}
	if isNotFound(err) {
		return op + " (not found)"
	}
	return op
}
