// Package github provides functionality for reading commit history from the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/weave/internal/config"
	"github.com/danielolaszy/weave/internal/fetch"
	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/internal/refs"
	"github.com/danielolaszy/weave/pkg/models"
)

// Client encapsulates the GitHub API client for one repository.
type Client struct {
	client *github.Client
	owner  string
	repo   string
	gate   *fetch.Gate
}

// APIURL returns the REST endpoint for a GitHub domain.
func APIURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates a GitHub client authenticated with the configured token.
// Calls made through the client share gate for rate limiting and retries.
func NewClient(cfg config.GitHubConfig, gate *fetch.Gate) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	apiURL := APIURL(cfg.Domain)
	logging.Info("github configuration",
		"domain", cfg.Domain,
		"api_url", apiURL,
		"repository", cfg.Repository,
		"token", logging.MaskSensitive(cfg.Token))

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	gh := github.NewClient(oauth2.NewClient(context.Background(), ts))

	if cfg.Domain != "" && cfg.Domain != "github.com" {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		gh.BaseURL = parsedURL
		gh.UploadURL = parsedURL
	}

	return newClient(gh, cfg.Owner(), cfg.Repo(), gate), nil
}

func newClient(gh *github.Client, owner, repo string, gate *fetch.Gate) *Client {
	return &Client{client: gh, owner: owner, repo: repo, gate: gate}
}

// Repository returns the "owner/repo" the client reads.
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// Verify checks the token by fetching the authenticated user.
func (c *Client) Verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logging.Error("failed to test github token", "error", err, "status_code", status)
		return fmt.Errorf("error testing github token: %w", err)
	}

	logging.Info("github authentication successful", "username", user.GetLogin())
	return nil
}

// ListBranches fetches one page of branch names.
func (c *Client) ListBranches(ctx context.Context, req fetch.Request) (fetch.Page[string], error) {
	opts := &github.BranchListOptions{
		ListOptions: github.ListOptions{Page: req.Index + 1, PerPage: req.Size},
	}
	branches, resp, err := c.client.Repositories.ListBranches(ctx, c.owner, c.repo, opts)
	page := fetch.Page[string]{Rate: rateOf(resp)}
	if err != nil {
		return page, classify(resp, err)
	}

	for _, b := range branches {
		page.Items = append(page.Items, b.GetName())
	}
	page.Last = resp.NextPage == 0
	return page, nil
}

// ListCommits fetches one page of the commit listing of branch.
func (c *Client) ListCommits(ctx context.Context, branch string, req fetch.Request) (fetch.Page[models.CommitSummary], error) {
	opts := &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{Page: req.Index + 1, PerPage: req.Size},
	}
	commits, resp, err := c.client.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
	page := fetch.Page[models.CommitSummary]{Rate: rateOf(resp)}
	if err != nil {
		return page, classify(resp, err)
	}

	for _, rc := range commits {
		page.Items = append(page.Items, models.CommitSummary{
			SHA:     rc.GetSHA(),
			Date:    rc.GetCommit().GetAuthor().GetDate(),
			Message: rc.GetCommit().GetMessage(),
			Author:  refs.AuthorIdentity(rc.GetAuthor().GetLogin(), rc.GetCommit().GetAuthor().GetName()),
		})
	}
	page.Last = resp.NextPage == 0
	return page, nil
}

// GetCommit fetches the detail of one commit.
func (c *Client) GetCommit(ctx context.Context, sha string) (*models.Commit, *fetch.RateLimit, error) {
	rc, resp, err := c.client.Repositories.GetCommit(ctx, c.owner, c.repo, sha, nil)
	if err != nil {
		return nil, rateOf(resp), classify(resp, err)
	}
	return toCommit(c.Repository(), rc), rateOf(resp), nil
}

// Branches walks every branch of the repository.
func (c *Client) Branches(ctx context.Context) ([]string, error) {
	p := fetch.NewPager[string]("github branches", c.gate, c.ListBranches)
	branches, stats, err := fetch.Collect(ctx, p)
	logWalk("branches", "", stats)
	return branches, err
}

// Commits walks the commit listing of branch.
func (c *Client) Commits(ctx context.Context, branch string) ([]models.CommitSummary, error) {
	p := fetch.NewPager[models.CommitSummary]("github commits", c.gate, func(ctx context.Context, req fetch.Request) (fetch.Page[models.CommitSummary], error) {
		return c.ListCommits(ctx, branch, req)
	})
	commits, stats, err := fetch.Collect(ctx, p)
	logWalk("commits", branch, stats)
	return commits, err
}

// Commit fetches one commit's detail under the client's retry policy.
func (c *Client) Commit(ctx context.Context, sha string) (*models.Commit, error) {
	var commit *models.Commit
	err := c.gate.Do(ctx, func(ctx context.Context) (*fetch.RateLimit, error) {
		var rate *fetch.RateLimit
		var err error
		commit, rate, err = c.GetCommit(ctx, sha)
		return rate, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commit %s: %w", sha, err)
	}
	return commit, nil
}

func logWalk(what, branch string, stats fetch.WalkStats) {
	args := []any{"kind", what, "pages", stats.Pages, "items", stats.Items}
	if branch != "" {
		args = append(args, "branch", branch)
	}
	if len(stats.FailedPages) > 0 {
		args = append(args, "failed_pages", stats.FailedPages)
		logging.Warn("github walk finished with abandoned pages", args...)
		return
	}
	logging.Debug("github walk finished", args...)
}

func toCommit(repository string, rc *github.RepositoryCommit) *models.Commit {
	gc := rc.GetCommit()
	committedAt := gc.GetCommitter().GetDate()
	if committedAt.IsZero() {
		committedAt = gc.GetAuthor().GetDate()
	}

	commit := &models.Commit{
		SHA:         rc.GetSHA(),
		URL:         rc.GetHTMLURL(),
		Repository:  repository,
		Author:      refs.AuthorIdentity(rc.GetAuthor().GetLogin(), gc.GetAuthor().GetName()),
		CommittedAt: committedAt,
		Message:     gc.GetMessage(),
		Additions:   rc.GetStats().GetAdditions(),
		Deletions:   rc.GetStats().GetDeletions(),
	}

	for _, f := range rc.Files {
		commit.Files = append(commit.Files, models.FileChange{
			Path:      f.GetFilename(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
		})
	}
	return commit
}

func rateOf(resp *github.Response) *fetch.RateLimit {
	if resp == nil || resp.Rate.Reset.IsZero() {
		return nil
	}
	return &fetch.RateLimit{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Reset:     resp.Rate.Reset.Time,
	}
}

// classify maps GitHub API errors to the fetcher's failure policy.
func classify(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &fetch.RateLimitedError{Reset: rateErr.Rate.Reset.Time, Err: err}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &fetch.RateLimitedError{Reset: time.Now().Add(abuseErr.GetRetryAfter()), Err: err}
	}

	status := 0
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		status = errResp.Response.StatusCode
	} else if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", fetch.ErrNotFound, err)
	case status == http.StatusTooManyRequests:
		return &fetch.RateLimitedError{Err: err}
	case status >= 400 && status < 500:
		return fetch.Terminal(err)
	default:
		return err
	}
}
