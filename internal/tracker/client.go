package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrConfigMissing is returned by NewFromEnv when the workflow environment
// does not provide a usable repository identity or token.
var ErrConfigMissing = errors.New("tracker configuration missing")

// NewClient creates a new tracker client.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// NewFromEnv creates a client from GITHUB_REPOSITORY ("owner/repo") and
// GITHUB_TOKEN, the variables GitHub Actions sets for workflow runs.
func NewFromEnv() (*Client, error) {
	repository := os.Getenv("GITHUB_REPOSITORY")
	if repository == "" {
		return nil, fmt.Errorf("%w: GITHUB_REPOSITORY not set", ErrConfigMissing)
	}
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("%w: invalid GITHUB_REPOSITORY %q, want owner/repo", ErrConfigMissing, repository)
	}
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("%w: GITHUB_TOKEN not set", ErrConfigMissing)
	}
	return NewClient(token, owner, repo), nil
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    c.BaseURL,
		HTTPClient: httpClient,
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing or GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// doRequest performs an HTTP request with authentication and retry logic.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		const maxResponseSize = 50 * 1024 * 1024
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		// Handle rate limiting (GitHub uses 403 with X-RateLimit-Remaining: 0, or 429)
		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
			delay := RetryDelay * time.Duration(1<<attempt)
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			lastErr = fmt.Errorf("rate limited (attempt %d/%d)", attempt+1, MaxRetries+1)
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
				if body != nil {
					jsonBody, err := json.Marshal(body)
					if err != nil {
						lastErr = fmt.Errorf("retry marshal failed: %w", err)
						continue
					}
					reqBody = bytes.NewReader(jsonBody)
				}
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, nil, fmt.Errorf("API error: %s (status %d)", string(respBody), resp.StatusCode)
		}

		return respBody, resp.Header, nil
	}

	return nil, nil, fmt.Errorf("max retries (%d) exceeded: %w", MaxRetries+1, lastErr)
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL and returns it.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// FetchIssue retrieves a single issue by its number.
func (c *Client) FetchIssue(ctx context.Context, number int) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue #%d: %w", number, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse issue response: %w", err)
	}

	return &issue, nil
}

// ListComments retrieves all comments for an issue in creation order.
func (c *Client) ListComments(ctx context.Context, number int) ([]Comment, error) {
	var allComments []Comment
	page := 1

	for {
		select {
		case <-ctx.Done():
			return allComments, ctx.Err()
		default:
		}

		params := map[string]string{
			"per_page":  strconv.Itoa(MaxPageSize),
			"page":      strconv.Itoa(page),
			"sort":      "created",
			"direction": "asc",
		}

		urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/comments", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments for #%d: %w", number, err)
		}

		var comments []Comment
		if err := json.Unmarshal(respBody, &comments); err != nil {
			return nil, fmt.Errorf("failed to parse comments response: %w", err)
		}
		allComments = append(allComments, comments...)

		if _, ok := hasNextPage(headers); !ok {
			break
		}
		page++

		if page > MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}

	return allComments, nil
}

// PostComment creates a new comment on an issue.
func (c *Client) PostComment(ctx context.Context, number int, body string) (*Comment, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/comments", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, map[string]interface{}{"body": body})
	if err != nil {
		return nil, fmt.Errorf("failed to post comment on #%d: %w", number, err)
	}

	var comment Comment
	if err := json.Unmarshal(respBody, &comment); err != nil {
		return nil, fmt.Errorf("failed to parse comment response: %w", err)
	}

	return &comment, nil
}

// GetLabels retrieves the label names currently on an issue.
func (c *Client) GetLabels(ctx context.Context, number int) ([]string, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/labels", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get labels for #%d: %w", number, err)
	}

	var labels []Label
	if err := json.Unmarshal(respBody, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels response: %w", err)
	}

	return LabelNames(labels), nil
}

// SetLabels replaces the full label set on an issue.
// PUT semantics keep gate transitions idempotent: the posted set is the
// complete desired state, not a delta.
func (c *Client) SetLabels(ctx context.Context, number int, labels []string) error {
	if labels == nil {
		labels = []string{}
	}
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/labels", nil)
	_, _, err := c.doRequest(ctx, http.MethodPut, urlStr, map[string]interface{}{"labels": labels})
	if err != nil {
		return fmt.Errorf("failed to set labels on #%d: %w", number, err)
	}
	return nil
}

// ListRecentIssues retrieves the most recently updated issues, newest first.
// A single page suffices: callers only look at recent activity windows.
// This filters out pull requests (GitHub returns PRs in the issues endpoint).
func (c *Client) ListRecentIssues(ctx context.Context, state string) ([]Issue, error) {
	if state == "" {
		state = "all"
	}
	params := map[string]string{
		"state":     state,
		"per_page":  strconv.Itoa(MaxPageSize),
		"sort":      "updated",
		"direction": "desc",
	}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues", params)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent issues: %w", err)
	}

	var issues []Issue
	if err := json.Unmarshal(respBody, &issues); err != nil {
		return nil, fmt.Errorf("failed to parse issues response: %w", err)
	}

	var out []Issue
	for i := range issues {
		if issues[i].PullRequest == nil {
			out = append(out, issues[i])
		}
	}
	return out, nil
}
