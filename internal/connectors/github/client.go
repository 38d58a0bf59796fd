package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Client wraps the go-github client with rate limiting and error mapping.
type Client struct {
	gh          *gh.Client
	config      *Config
	rateLimiter *RateLimiter
}

// NewClient creates a GitHub API client for the configuration.
// An empty token sends unauthenticated requests, which only works for
// org and user listings of public repositories.
func NewClient(ctx context.Context, cfg *Config, token string) (*Client, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(ctx, ts)
	} else {
		if cfg.OwnerType == OwnerAuthenticated {
			return nil, fmt.Errorf("%w: set %s", ErrMissingToken, cfg.TokenEnv)
		}
		httpClient = &http.Client{}
	}
	httpClient.Timeout = DefaultTimeout

	return NewClientWithHTTPClient(cfg, httpClient)
}

// NewClientWithHTTPClient creates a GitHub client with a custom http.Client.
func NewClientWithHTTPClient(cfg *Config, httpClient *http.Client) (*Client, error) {
	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base_url: %w", err)
		}
		client.BaseURL = u
	}

	return &Client{
		gh:          client,
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
	}, nil
}

// ListRepos fetches one page of repositories, sorted by full name so page
// numbers stay stable across a cycle. It returns the next page number, or
// zero on the last page.
func (c *Client) ListRepos(ctx context.Context, page int) ([]*gh.Repository, int, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	list := gh.ListOptions{Page: page, PerPage: c.config.PerPage}

	var (
		repos []*gh.Repository
		resp  *gh.Response
		err   error
	)
	switch c.config.OwnerType {
	case OwnerOrg:
		repos, resp, err = c.gh.Repositories.ListByOrg(ctx, c.config.Owner, &gh.RepositoryListByOrgOptions{
			Type:        "all",
			Sort:        "full_name",
			Direction:   "asc",
			ListOptions: list,
		})
	case OwnerUser:
		repos, resp, err = c.gh.Repositories.ListByUser(ctx, c.config.Owner, &gh.RepositoryListByUserOptions{
			Type:        "owner",
			Sort:        "full_name",
			Direction:   "asc",
			ListOptions: list,
		})
	default:
		repos, resp, err = c.gh.Repositories.ListByAuthenticatedUser(ctx, &gh.RepositoryListByAuthenticatedUserOptions{
			Visibility:  "all",
			Affiliation: "owner,collaborator,organization_member",
			Sort:        "full_name",
			Direction:   "asc",
			ListOptions: list,
		})
	}
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, 0, c.wrapError(err, "list repos")
	}

	return repos, resp.NextPage, nil
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to our error types.
func (c *Client) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{
			ResetAt:   rateLimitErr.Rate.Reset.Time,
			Remaining: rateLimitErr.Rate.Remaining,
			Limit:     rateLimitErr.Rate.Limit,
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}

	return fmt.Errorf("%s: %w", operation, err)
}
