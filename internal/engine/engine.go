// Package engine runs a reconciliation pass: fetch both sources, extract
// cross references, resolve owners, map timelines and persist the delta.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/danielolaszy/weave/internal/fetch"
	"github.com/danielolaszy/weave/internal/identity"
	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/internal/reconcile"
	"github.com/danielolaszy/weave/internal/scanner"
	"github.com/danielolaszy/weave/internal/store"
	"github.com/danielolaszy/weave/internal/timeline"
	"github.com/danielolaszy/weave/pkg/models"
)

// CommitSource is the commit-history side of a pass.
type CommitSource interface {
	Repository() string
	Branches(ctx context.Context) ([]string, error)
	Commits(ctx context.Context, branch string) ([]models.CommitSummary, error)
	Commit(ctx context.Context, sha string) (*models.Commit, error)
}

// IssueSource is the issue-tracker side of a pass.
type IssueSource interface {
	Issues(ctx context.Context) ([]models.Issue, error)
	Issue(ctx context.Context, key string) (*models.Issue, error)
	Transitions(ctx context.Context, key string) ([]models.Transition, error)
}

// Store is the persisted state a pass reads and writes.
type Store interface {
	reconcile.Writer
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
	RecordRun(ctx context.Context, run store.Run) error
}

// Engine wires the sources, the store and the resolver together.
type Engine struct {
	Commits  CommitSource
	Issues   IssueSource
	Store    Store
	Resolver *identity.Resolver

	// Scanner measures code files of new commits; nil disables scanning
	Scanner  scanner.Scanner
	Checkout string

	// InitialStage is the stage of commits made before an issue's first transition
	InitialStage string

	// Ledger appends a sync_runs row at the end of every pass
	Ledger bool

	Now func() time.Time
}

// Options selects which sides of a pass run.
type Options struct {
	Commits bool
	Issues  bool

	// Branches restricts the commit walk; empty walks every branch
	Branches []string
}

// Result summarizes a finished pass.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Report     reconcile.Report

	// Learned is the number of identity mappings persisted by the pass
	Learned int
}

// observed is a commit seen on one or more branches during the pass.
type observed struct {
	summary  models.CommitSummary
	branches []string
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run executes one pass. Per-record failures are reported in the result;
// only cancellation and failures to read persisted state abort the pass.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &Result{RunID: uuid.New().String(), StartedAt: e.now()}
	initial := e.InitialStage
	if initial == "" {
		initial = timeline.DefaultInitialStage
	}

	if err := e.Resolver.Load(ctx); err != nil {
		return nil, err
	}
	snap, err := e.Store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	logging.Info("Starting reconciliation pass",
		"run_id", result.RunID,
		"commits", opts.Commits,
		"issues", opts.Issues,
		"known_commits", len(snap.Commits),
		"known_issues", len(snap.Issues))

	var commits []*observed
	var issues []models.Issue

	g, gctx := errgroup.WithContext(ctx)
	if opts.Commits && e.Commits != nil {
		g.Go(func() error {
			var err error
			commits, err = e.walkCommits(gctx, opts.Branches)
			return err
		})
	}
	if opts.Issues && e.Issues != nil {
		g.Go(func() error {
			var err error
			issues, err = e.Issues.Issues(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	issuesByKey := dedupeIssues(issues)
	rec := reconcile.New(snap, e.Store)

	passRefs, err := e.reconcileCommits(ctx, rec, snap, commits, issuesByKey)
	if err != nil {
		return nil, err
	}

	if opts.Issues && e.Issues != nil {
		if err := e.reconcileIssues(ctx, rec, snap, issues, passRefs, initial); err != nil {
			return nil, err
		}
	}

	if result.Learned, err = e.Resolver.Flush(ctx); err != nil {
		logging.Error("Failed to persist learned identities", "error", err)
	}

	result.Report = rec.Report()
	result.FinishedAt = e.now()
	e.recordRun(ctx, result)

	r := result.Report
	logging.Info("Reconciliation pass finished",
		"run_id", result.RunID,
		"commits_inserted", r.Commits.Inserted,
		"commits_updated", r.Commits.Updated,
		"issues_inserted", r.Issues.Inserted,
		"issues_updated", r.Issues.Updated,
		"records_inserted", r.Records.Inserted,
		"records_updated", r.Records.Updated,
		"records_skipped", r.Records.Skipped,
		"failed", len(r.FailedKeys),
		"duration", result.FinishedAt.Sub(result.StartedAt).String())
	return result, nil
}

func (e *Engine) walkCommits(ctx context.Context, branches []string) ([]*observed, error) {
	if len(branches) == 0 {
		var err error
		if branches, err = e.Commits.Branches(ctx); err != nil {
			return nil, err
		}
	}

	bySHA := make(map[string]*observed)
	var order []*observed
	for _, branch := range branches {
		summaries, err := e.Commits.Commits(ctx, branch)
		if err != nil {
			return nil, err
		}
		logging.Debug("Walked branch", "repository", e.Commits.Repository(), "branch", branch, "commits", len(summaries))

		for _, s := range summaries {
			o, ok := bySHA[s.SHA]
			if !ok {
				o = &observed{summary: s}
				bySHA[s.SHA] = o
				order = append(order, o)
			}
			o.branches = append(o.branches, branch)
		}
	}
	return order, nil
}

func dedupeIssues(issues []models.Issue) map[string]*models.Issue {
	out := make(map[string]*models.Issue, len(issues))
	for i := range issues {
		if _, ok := out[issues[i].Key]; !ok {
			out[issues[i].Key] = &issues[i]
		}
	}
	return out
}

func (e *Engine) recordRun(ctx context.Context, result *Result) {
	if !e.Ledger {
		return
	}
	r := result.Report
	run := store.Run{
		ID:              result.RunID,
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
		CommitsInserted: r.Commits.Inserted,
		CommitsUpdated:  r.Commits.Updated,
		CommitsSkipped:  r.Commits.Skipped,
		CommitsFailed:   r.Commits.Failed,
		IssuesInserted:  r.Issues.Inserted,
		IssuesUpdated:   r.Issues.Updated,
		IssuesSkipped:   r.Issues.Skipped,
		IssuesFailed:    r.Issues.Failed,
		RecordsInserted: r.Records.Inserted,
		RecordsUpdated:  r.Records.Updated,
		RecordsSkipped:  r.Records.Skipped,
		RecordsFailed:   r.Records.Failed,
		FailedKeys:      r.FailedKeys,
	}
	if err := e.Store.RecordRun(ctx, run); err != nil {
		logging.Error("Failed to record sync run", "run_id", run.ID, "error", err)
	}
}

// isCancel reports whether err came from ctx being done.
func isCancel(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func isNotFound(err error) bool {
	return errors.Is(err, fetch.ErrNotFound)
}
