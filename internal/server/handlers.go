package server

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/repograph/internal/analysis"
	"github.com/rohankatakam/repograph/internal/errors"
	"github.com/rohankatakam/repograph/internal/github"
	"github.com/rohankatakam/repograph/internal/graph"
)

const (
	msgInvalidBody   = "Invalid request body."
	msgURLRequired   = "Please enter a GitHub URL"
	msgModelFailure  = "Failed to get description from AI."
	statusListingErr = http.StatusBadGateway
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAnalyzeCode validates {code}, invokes the analyzer once and maps
// failures to 400 (client faults) or 500 (everything else)
func (s *Server) handleAnalyzeCode(c *gin.Context) {
	log := s.requestLogger(c)

	// An empty body is treated as {} so it fails validation like a missing code
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			log.WithField("limit", tooLarge.Limit).Warn("request body exceeds limit")
			c.JSON(http.StatusBadRequest, AnalysisResponse{Error: analysis.MsgInputTooLarge})
			return
		}
		log.WithError(err).Warn("malformed analysis request")
		c.JSON(http.StatusBadRequest, AnalysisResponse{Error: msgInvalidBody})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, AnalysisResponse{Error: analysis.MsgCodeRequired})
		return
	}

	description, err := s.analyzer.Analyze(c.Request.Context(), req.Code)
	if err != nil {
		log.WithField("kind", errors.KindOf(err).String()).WithError(err).Error("analysis failed")
		c.JSON(errors.HTTPStatus(err), AnalysisResponse{Error: wireMessage(err)})
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{Description: description})
}

// handleGraph lists a repository and returns its positioned graph
func (s *Server) handleGraph(c *gin.Context) {
	log := s.requestLogger(c)

	var q GraphQuery
	if err := c.ShouldBindQuery(&q); err != nil || validate.Struct(q) != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgURLRequired})
		return
	}

	owner, repo, err := github.ParseRepoURL(q.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: errors.UserMessage(err)})
		return
	}

	branch := q.Branch
	if branch == "" {
		branch = s.branch
	}

	log = log.WithFields(logrus.Fields{"owner": owner, "repo": repo, "branch": branch})
	snap, err := s.repos.FetchSnapshot(c.Request.Context(), owner, repo, branch)
	if err != nil {
		log.WithError(err).Error("repository listing failed")
		status := statusListingErr
		if errors.IsKind(err, errors.KindInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: errors.UserMessage(err)})
		return
	}

	g := graph.Build(snap.Entries)
	c.JSON(http.StatusOK, GraphResponse{
		Repository: snap.Repository,
		Branch:     snap.Branch,
		Truncated:  snap.Truncated,
		Nodes:      g.Nodes,
		Edges:      g.Edges,
	})
}

func (s *Server) requestLogger(c *gin.Context) *logrus.Entry {
	return s.logger.WithField("request_id", c.GetString(requestIDKey))
}

// wireMessage is the {error} text for a failed analysis. Oversized payloads
// keep the "input too large" wording clients match on.
func wireMessage(err error) string {
	switch errors.KindOf(err) {
	case errors.KindInput:
		return errors.UserMessage(err)
	case errors.KindOversized:
		return analysis.MsgInputTooLarge
	default:
		return msgModelFailure
	}
}
