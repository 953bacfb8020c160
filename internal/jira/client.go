// Package jira reads issues and their changelogs from the JIRA API.
package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/weave/internal/config"
	"github.com/danielolaszy/weave/internal/fetch"
	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/internal/timeline"
	"github.com/danielolaszy/weave/pkg/models"
)

// changelogTime is the layout of changelog history timestamps.
const changelogTime = "2006-01-02T15:04:05.000-0700"

const (
	defaultPriority = "Normal"
	defaultType     = "Story"
)

// Client handles interactions with the JIRA API. Fetched issues are cached
// for the lifetime of the client, missing issues included.
type Client struct {
	client      *jira.Client
	jql         string
	sprintField string
	gate        *fetch.Gate

	mu         sync.Mutex
	issues     map[string]*models.Issue
	changelogs map[string][]models.ChangelogEntry
}

// NewClient creates a JIRA client using basic authentication.
func NewClient(cfg config.JiraConfig, gate *fetch.Gate) (*Client, error) {
	logging.Info("jira configuration",
		"url", cfg.URL,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token))

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}
	return newClient(client, cfg.Query(), cfg.SprintField, gate), nil
}

func newClient(client *jira.Client, jql, sprintField string, gate *fetch.Gate) *Client {
	return &Client{
		client:      client,
		jql:         jql,
		sprintField: sprintField,
		gate:        gate,
		issues:      make(map[string]*models.Issue),
		changelogs:  make(map[string][]models.ChangelogEntry),
	}
}

// Verify checks the credentials by fetching the authenticated user.
func (c *Client) Verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	user, _, err := c.client.User.GetSelfWithContext(ctx)
	if err != nil {
		logging.Error("failed to test jira credentials", "error", err)
		return fmt.Errorf("error testing jira credentials: %w", err)
	}

	logging.Info("jira authentication successful", "user", user.DisplayName)
	return nil
}

func (c *Client) fields() []string {
	fields := []string{"summary", "status", "priority", "assignee", "reporter", "issuetype", "created", "updated", "parent", "issuelinks"}
	if c.sprintField != "" {
		fields = append(fields, c.sprintField)
	}
	return fields
}

// SearchIssues fetches one page of the configured query.
func (c *Client) SearchIssues(ctx context.Context, req fetch.Request) (fetch.Page[models.Issue], error) {
	opts := &jira.SearchOptions{
		StartAt:    req.Offset,
		MaxResults: req.Size,
		Fields:     c.fields(),
	}

	issues, resp, err := c.client.Issue.SearchWithContext(ctx, c.jql, opts)
	if err != nil {
		return fetch.Page[models.Issue]{}, classify(resp, err)
	}

	page := fetch.Page[models.Issue]{Total: resp.Total, HasTotal: true}
	for i := range issues {
		issue := c.toIssue(&issues[i])
		page.Items = append(page.Items, *issue)
	}
	return page, nil
}

// Issues walks every issue matched by the configured query.
func (c *Client) Issues(ctx context.Context) ([]models.Issue, error) {
	p := fetch.NewPager[models.Issue]("jira search", c.gate, c.SearchIssues)
	issues, stats, err := fetch.Collect(ctx, p)
	if len(stats.FailedPages) > 0 {
		logging.Warn("jira search finished with abandoned pages", "failed_pages", stats.FailedPages, "issues", stats.Items)
	} else {
		logging.Debug("jira search finished", "pages", stats.Pages, "issues", stats.Items)
	}

	c.mu.Lock()
	for i := range issues {
		issue := issues[i]
		c.issues[issue.Key] = &issue
	}
	c.mu.Unlock()
	return issues, err
}

// Issue returns one issue. A missing issue yields fetch.ErrNotFound and is
// remembered so it is not requested again.
func (c *Client) Issue(ctx context.Context, key string) (*models.Issue, error) {
	c.mu.Lock()
	issue, ok := c.issues[key]
	c.mu.Unlock()
	if ok {
		if issue == nil {
			return nil, fmt.Errorf("issue %s: %w", key, fetch.ErrNotFound)
		}
		return issue, nil
	}

	if err := c.load(ctx, key); err != nil {
		return nil, err
	}
	return c.Issue(ctx, key)
}

// Changelog returns the changelog of one issue, oldest entry first.
func (c *Client) Changelog(ctx context.Context, key string) ([]models.ChangelogEntry, error) {
	c.mu.Lock()
	entries, ok := c.changelogs[key]
	missing := ok && entries == nil && c.issues[key] == nil
	c.mu.Unlock()
	if missing {
		return nil, fmt.Errorf("changelog of %s: %w", key, fetch.ErrNotFound)
	}
	if ok {
		return entries, nil
	}

	if err := c.load(ctx, key); err != nil {
		return nil, err
	}
	return c.Changelog(ctx, key)
}

// Transitions returns the status transitions of one issue.
func (c *Client) Transitions(ctx context.Context, key string) ([]models.Transition, error) {
	entries, err := c.Changelog(ctx, key)
	if err != nil {
		return nil, err
	}
	return timeline.StatusTransitions(entries), nil
}

// load fetches key with its changelog and fills both caches.
func (c *Client) load(ctx context.Context, key string) error {
	var raw *jira.Issue
	err := c.gate.Do(ctx, func(ctx context.Context) (*fetch.RateLimit, error) {
		var resp *jira.Response
		var err error
		raw, resp, err = c.client.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{
			Fields: strings.Join(c.fields(), ","),
			Expand: "changelog",
		})
		return nil, classify(resp, err)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case errors.Is(err, fetch.ErrNotFound):
		logging.Debug("jira issue not found", "key", key)
		c.issues[key] = nil
		c.changelogs[key] = nil
		return nil
	case err != nil:
		return fmt.Errorf("failed to fetch issue %s: %w", key, err)
	}

	c.issues[key] = c.toIssue(raw)
	c.changelogs[key] = toChangelog(key, raw.Changelog)
	return nil
}

func (c *Client) toIssue(raw *jira.Issue) *models.Issue {
	issue := &models.Issue{
		Key:      raw.Key,
		Priority: defaultPriority,
		Reporter: models.Unknown,
		Type:     defaultType,
	}
	f := raw.Fields
	if f == nil {
		return issue
	}

	issue.Summary = f.Summary
	if f.Status != nil {
		issue.Status = f.Status.Name
	}
	if f.Priority != nil && f.Priority.Name != "" {
		issue.Priority = f.Priority.Name
	}
	if f.Assignee != nil {
		issue.Assignee = displayName(f.Assignee)
		issue.AssigneeEmail = f.Assignee.EmailAddress
	}
	if f.Reporter != nil {
		if name := displayName(f.Reporter); name != "" {
			issue.Reporter = name
		}
	}
	if f.Type.Name != "" {
		issue.Type = f.Type.Name
	}
	issue.Created = time.Time(f.Created)
	issue.Updated = time.Time(f.Updated)
	if issue.Updated.IsZero() {
		issue.Updated = issue.Created
	}
	if f.Parent != nil && f.Parent.Key != "" {
		issue.Parent = f.Parent.Key
		issue.Links = append(issue.Links, models.IssueLink{Type: "parent", Key: f.Parent.Key})
	}
	for _, l := range f.IssueLinks {
		if l == nil {
			continue
		}
		if l.OutwardIssue != nil {
			issue.Links = append(issue.Links, models.IssueLink{Type: linkPhrase(l.Type.Outward), Key: l.OutwardIssue.Key})
		}
		if l.InwardIssue != nil {
			issue.Links = append(issue.Links, models.IssueLink{Type: linkPhrase(l.Type.Inward), Key: l.InwardIssue.Key})
		}
	}
	if c.sprintField != "" {
		issue.Sprint = sprintName(f.Unknowns[c.sprintField])
	}
	return issue
}

func displayName(u *jira.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

func linkPhrase(s string) string {
	if s == "" {
		return "relates to"
	}
	return strings.ToLower(s)
}

// sprintName reads the first sprint of the sprint custom field, which is
// either a list of objects or, on older servers, a list of encoded strings.
func sprintName(v any) string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	switch s := list[0].(type) {
	case map[string]any:
		name, _ := s["name"].(string)
		return name
	case string:
		_, rest, found := strings.Cut(s, "name=")
		if !found {
			return ""
		}
		name, _, _ := strings.Cut(rest, ",")
		return name
	}
	return ""
}

func toChangelog(key string, cl *jira.Changelog) []models.ChangelogEntry {
	if cl == nil {
		return []models.ChangelogEntry{}
	}

	entries := make([]models.ChangelogEntry, 0, len(cl.Histories))
	for _, h := range cl.Histories {
		created, err := time.Parse(changelogTime, h.Created)
		if err != nil {
			logging.Warn("skipping changelog entry with bad timestamp", "key", key, "created", h.Created, "error", err)
			continue
		}
		entry := models.ChangelogEntry{Created: created}
		for _, item := range h.Items {
			entry.Items = append(entry.Items, models.ChangelogItem{
				Field: item.Field,
				From:  item.FromString,
				To:    item.ToString,
			})
		}
		entries = append(entries, entry)
	}
	return entries
}

// classify maps JIRA API errors to the fetcher's failure policy.
func classify(resp *jira.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp == nil || resp.Response == nil {
		return err
	}

	switch status := resp.StatusCode; {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", fetch.ErrNotFound, err)
	case status == http.StatusTooManyRequests:
		return &fetch.RateLimitedError{Reset: retryAfter(resp.Header.Get("Retry-After")), Err: err}
	case status >= 400 && status < 500:
		return fetch.Terminal(err)
	default:
		return err
	}
}

func retryAfter(header string) time.Time {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	if t, err := http.ParseTime(header); err == nil {
		return t
	}
	return time.Time{}
}
