// Package tracker provides the client and data types for the GitHub REST API.
//
// The pipeline's entire persistent state lives on the tracker: comment
// artifacts carry the documents and decision records, labels carry the gate
// state. This package is the only component that talks to the API.
package tracker

import (
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited requests.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// MaxPageSize is the maximum number of items to fetch per page.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	// This prevents infinite loops from malformed Link headers.
	MaxPages = 1000
)

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string       // GitHub token
	Owner      string       // Repository owner (user or org)
	Repo       string       // Repository name
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // Optional custom HTTP client
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	ID          int        `json:"id"`     // Global unique ID
	Number      int        `json:"number"` // Repository-scoped issue number
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"` // "open" or "closed"
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Labels      []Label    `json:"labels"`
	User        *User      `json:"user,omitempty"` // Author
	HTMLURL     string     `json:"html_url"`
	PullRequest *PullRef   `json:"pull_request,omitempty"` // Non-nil if this is a PR
}

// Comment represents an issue comment from the GitHub API.
type Comment struct {
	ID        int        `json:"id"`
	Body      string     `json:"body"`
	User      *User      `json:"user,omitempty"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	HTMLURL   string     `json:"html_url,omitempty"`
}

// PullRef indicates an issue is actually a pull request.
// The GitHub Issues API returns PRs alongside issues; this field
// distinguishes them.
type PullRef struct {
	URL string `json:"url,omitempty"`
}

// User represents a GitHub user.
type User struct {
	ID      int    `json:"id"`
	Login   string `json:"login"`
	HTMLURL string `json:"html_url,omitempty"`
}

// Label represents a GitHub label.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// LabelNames extracts label name strings from a slice of Label structs.
func LabelNames(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}

// CommentBodies extracts comment body strings in the order given.
func CommentBodies(comments []Comment) []string {
	bodies := make([]string, len(comments))
	for i, c := range comments {
		bodies[i] = c.Body
	}
	return bodies
}
