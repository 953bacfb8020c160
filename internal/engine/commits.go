package engine

import (
	"context"

	"github.com/danielolaszy/weave/internal/identity"
	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/internal/reconcile"
	"github.com/danielolaszy/weave/internal/refs"
	"github.com/danielolaszy/weave/internal/scanner"
	"github.com/danielolaszy/weave/pkg/models"
)

// reconcileCommits builds and applies commit groups. It returns the
// references of commits persisted by this pass, keyed by issue.
func (e *Engine) reconcileCommits(ctx context.Context, rec *reconcile.Reconciler, snap *models.Snapshot, commits []*observed, issues map[string]*models.Issue) (map[string][]models.EventRef, error) {
	var candidates []reconcile.CommitCandidate
	refsByIssue := make(map[string][]models.EventRef)

	for _, o := range commits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sha := o.summary.SHA
		message, author, at := o.summary.Message, o.summary.Author, o.summary.Date

		var detail *models.Commit
		if _, known := snap.Commits[sha]; !known {
			var err error
			detail, err = e.Commits.Commit(ctx, sha)
			switch {
			case isCancel(ctx, err):
				return nil, err
			case isNotFound(err):
				logging.Info("Commit disappeared before its detail was fetched", "sha", sha)
				continue
			case err != nil:
				rec.FailCommit(sha, err)
				continue
			}
			detail.Branches = o.branches
			e.scan(ctx, detail)
			message, author, at = detail.Message, detail.Author, detail.CommittedAt
		}

		keys := refs.IssueKeys(message)
		owner := e.resolveOwner(ctx, author, keys, issues)

		c := reconcile.CommitCandidate{
			SHA:      sha,
			Branches: o.branches,
			Owner:    owner,
			Detail:   detail,
		}
		if owner == models.Unknown && detail == nil {
			c.Owner = ""
		}
		if detail != nil {
			c.IssueKeys = keys
			c.Tags = refs.Tags(message)
			c.Words = refs.Words(message)
			c.FileTypes = fileTypes(detail)
			for _, key := range keys {
				refsByIssue[key] = append(refsByIssue[key], models.EventRef{IssueKey: key, SHA: sha, At: at, Author: author, Owner: owner})
			}
		}
		candidates = append(candidates, c)
	}

	if err := rec.ApplyCommits(ctx, candidates); err != nil {
		return nil, err
	}

	failed := make(map[string]bool)
	for _, k := range rec.Report().FailedKeys {
		failed[k] = true
	}
	for key, list := range refsByIssue {
		kept := list[:0]
		for _, r := range list {
			if !failed[r.SHA] {
				kept = append(kept, r)
			}
		}
		refsByIssue[key] = kept
	}
	return refsByIssue, nil
}

// fileTypes counts touched files per extension.
func fileTypes(c *models.Commit) map[string]int {
	if len(c.Files) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, f := range c.Files {
		out[scanner.Extension(f.Path)]++
	}
	return out
}

func (e *Engine) scan(ctx context.Context, c *models.Commit) {
	if e.Scanner == nil {
		return
	}
	for i := range c.Files {
		if !scanner.IsCodeFile(c.Files[i].Path) {
			continue
		}
		c.Files[i].Complexity = e.Scanner.Scan(ctx, e.Checkout, c.Files[i].Path)
	}
}

// resolveOwner maps a commit author to a person. When no mapping exists,
// the assignee of the first referenced issue that has one is learned.
func (e *Engine) resolveOwner(ctx context.Context, author string, keys []string, issues map[string]*models.Issue) string {
	if org, ok := e.Resolver.Resolve(author); ok {
		return org
	}
	if author == models.Unknown {
		return models.Unknown
	}

	for _, key := range keys {
		issue := issues[key]
		if issue == nil && e.Issues != nil {
			var err error
			issue, err = e.Issues.Issue(ctx, key)
			if err != nil {
				if !isNotFound(err) {
					logging.Warn("Could not fetch referenced issue", "key", key, "error", err)
				}
				continue
			}
		}
		if issue == nil || issue.Assignee == "" {
			continue
		}
		e.Resolver.Learn(author, issue.Assignee)
		logging.Debug("Discovered owner from referenced issue", "author", identity.Normalize(author), "owner", issue.Assignee, "key", key)
		return issue.Assignee
	}
	return models.Unknown
}
