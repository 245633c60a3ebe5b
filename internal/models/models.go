package models

import (
	"fmt"
	"time"
)

// EntryKind is the kind of a repository listing entry
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// RepoEntry is one item from the flat recursive listing of a repository.
// Entries are immutable once fetched.
type RepoEntry struct {
	Path string    `json:"path" yaml:"path"`
	Kind EntryKind `json:"kind" yaml:"kind"`
	Size *int64    `json:"size,omitempty" yaml:"size,omitempty"`
}

// IsDir reports whether the entry is a directory
func (e RepoEntry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Repository represents a GitHub repository
type Repository struct {
	Owner         string `json:"owner" yaml:"owner"`
	Name          string `json:"name" yaml:"name"`
	FullName      string `json:"full_name" yaml:"full_name"`
	URL           string `json:"url" yaml:"url"`
	DefaultBranch string `json:"default_branch" yaml:"default_branch"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	Language      string `json:"language,omitempty" yaml:"language,omitempty"`
}

// ID returns the owner/name identifier of the repository
func (r Repository) ID() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// Snapshot is the listing of a repository at a resolved branch
type Snapshot struct {
	Repository Repository  `json:"repository" yaml:"repository"`
	Branch     string      `json:"branch" yaml:"branch"`
	Entries    []RepoEntry `json:"entries" yaml:"entries"`
	Truncated  bool        `json:"truncated" yaml:"truncated"`
	FetchedAt  time.Time   `json:"fetched_at" yaml:"fetched_at"`
}
