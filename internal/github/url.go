package github

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rohankatakam/repograph/internal/errors"
)

var (
	sshRegex      = regexp.MustCompile(`^git@[^:]+:([^/]+)/([^/]+?)/?$`)
	shorthandRgx  = regexp.MustCompile(`^([^/\s]+)/([^/\s]+)$`)
	identifierRgx = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ParseRepoURL extracts owner and repository from a repository URL.
// Supported formats:
//   - HTTPS: https://github.com/owner/repo(.git), extra path segments ignored
//   - Host without scheme: github.com/owner/repo
//   - SSH: git@github.com:owner/repo.git
//   - Shorthand: owner/repo
func ParseRepoURL(raw string) (owner, repo string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.InputError("Please enter a GitHub URL")
	}

	switch {
	case sshRegex.MatchString(raw):
		m := sshRegex.FindStringSubmatch(raw)
		owner, repo = m[1], m[2]
	case strings.Contains(raw, "://"):
		owner, repo, err = parsePath(raw)
	case strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/"):
		owner, repo, err = parsePath("https://" + raw)
	case shorthandRgx.MatchString(raw):
		m := shorthandRgx.FindStringSubmatch(raw)
		owner, repo = m[1], m[2]
	default:
		return "", "", errors.InputErrorf("invalid GitHub URL: %s", raw)
	}
	if err != nil {
		return "", "", err
	}

	repo = strings.TrimSuffix(repo, ".git")
	if !identifierRgx.MatchString(owner) || !identifierRgx.MatchString(repo) {
		return "", "", errors.InputErrorf("invalid GitHub URL: %s", raw)
	}
	return owner, repo, nil
}

func parsePath(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", errors.InputErrorf("invalid GitHub URL: %s", raw)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", "", errors.InputErrorf("invalid GitHub URL: %s (expected /owner/repo)", raw)
	}
	return segments[0], segments[1], nil
}
