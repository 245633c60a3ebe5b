package server

import (
	"github.com/go-playground/validator/v10"

	"github.com/rohankatakam/repograph/internal/graph"
	"github.com/rohankatakam/repograph/internal/models"
)

// AnalysisRequest is the body of POST /analyze-code
type AnalysisRequest struct {
	Code string `json:"code" validate:"required"`
}

// AnalysisResponse carries either a description or an error, never both
type AnalysisResponse struct {
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// GraphQuery is the query of GET /api/graph
type GraphQuery struct {
	URL    string `form:"url" validate:"required"`
	Branch string `form:"branch"`
}

// GraphResponse is the positioned graph of a repository listing
type GraphResponse struct {
	Repository models.Repository `json:"repository"`
	Branch     string            `json:"branch"`
	Truncated  bool              `json:"truncated"`
	Nodes      []graph.Node      `json:"nodes"`
	Edges      []graph.Edge      `json:"edges"`
}

// ErrorResponse is the error envelope shared by all endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

var validate = validator.New()
