// Package selection drives the per-node analysis lifecycle: it fetches the
// selected file, classifies it, requests an explanation and exposes exactly
// one current SelectionState.
package selection

import (
	"github.com/rohankatakam/repograph/internal/filetype"
)

// BinaryDescription is shown for files that are not analyzed
const BinaryDescription = "This file is not a text or source file, so no AI description is available."

// Status names the variant of a State
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is exactly one of Idle, Loading(path), Ready(path, content,
// classification, description) or Failed(path, reason). Content is nil for
// binary files.
type State struct {
	Status         Status                  `json:"status"`
	Path           string                  `json:"path,omitempty"`
	Content        *string                 `json:"content,omitempty"`
	Classification filetype.Classification `json:"classification,omitempty"`
	Description    string                  `json:"description,omitempty"`
	Reason         string                  `json:"reason,omitempty"`
}

// Idle is the state with nothing selected
func Idle() State {
	return State{Status: StatusIdle}
}

// Loading is the state while path is being analyzed
func Loading(path string) State {
	return State{Status: StatusLoading, Path: path}
}

// Ready is the terminal success state
func Ready(path string, content *string, class filetype.Classification, description string) State {
	return State{
		Status:         StatusReady,
		Path:           path,
		Content:        content,
		Classification: class,
		Description:    description,
	}
}

// Failed is the terminal failure state; path stays visible
func Failed(path, reason string) State {
	return State{Status: StatusFailed, Path: path, Reason: reason}
}

// IsTerminal reports whether the state is Ready or Failed
func (s State) IsTerminal() bool {
	return s.Status == StatusReady || s.Status == StatusFailed
}
