package reconcile

import (
	"context"
	"fmt"

	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/pkg/models"
)

// Writer persists one record group atomically.
type Writer interface {
	WriteCommit(ctx context.Context, change models.CommitChange) error
	WriteIssue(ctx context.Context, change models.IssueChange) error
}

// CommitCandidate is a commit observed during the pass.
type CommitCandidate struct {
	SHA      string
	Branches []string
	Owner    string

	// Detail is required when the commit is not yet persisted
	Detail *models.Commit

	IssueKeys []string
	Tags      []string
	Words     []string
	FileTypes map[string]int
}

// IssueCandidate is an issue observed during the pass, with one record
// per commit that references it.
type IssueCandidate struct {
	Issue       *models.Issue
	Transitions []models.Transition
	Records     []models.ReconciledRecord
}

// Counts tallies decisions of one kind of group or record.
type Counts struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
}

func (c *Counts) add(a Action) {
	switch a {
	case Insert:
		c.Inserted++
	case Update:
		c.Updated++
	default:
		c.Skipped++
	}
}

// Writes returns the number of rows changed.
func (c Counts) Writes() int {
	return c.Inserted + c.Updated
}

// Report is the outcome of a reconciliation pass.
type Report struct {
	Commits Counts
	Issues  Counts
	Records Counts

	// FailedKeys are the natural keys whose group was rolled back
	FailedKeys []string
}

// Reconciler compares candidates with one snapshot taken at the start of
// the pass. It holds no lock across a decision and its write; concurrent
// passes on the same key resolve at the storage layer, last writer wins.
type Reconciler struct {
	snap   *models.Snapshot
	writer Writer
	report Report
}

// New creates a reconciler over snap.
func New(snap *models.Snapshot, writer Writer) *Reconciler {
	if snap == nil {
		snap = models.NewSnapshot()
	}
	return &Reconciler{snap: snap, writer: writer}
}

// PlanCommit returns the minimal change for c and the commit-level action.
func (r *Reconciler) PlanCommit(c CommitCandidate) (models.CommitChange, Action, error) {
	change := models.CommitChange{
		SHA:       c.SHA,
		Owner:     c.Owner,
		IssueKeys: c.IssueKeys,
		Tags:      c.Tags,
		Words:     c.Words,
		FileTypes: c.FileTypes,
	}

	prev, ok := r.snap.Commits[c.SHA]
	if !ok {
		if c.Detail == nil {
			return change, Skip, fmt.Errorf("commit %s has no detail", c.SHA)
		}
		change.Commit = c.Detail
		change.Branches = c.Branches
		return change, Insert, nil
	}

	for _, b := range c.Branches {
		if !prev.Branches[b] {
			change.Branches = append(change.Branches, b)
		}
	}
	change.OwnerChanged = c.Owner != "" && c.Owner != prev.Owner
	if change.Empty() {
		return change, Skip, nil
	}
	return change, Update, nil
}

// PlanIssue returns the minimal change for c, the issue-level action and
// the action of each record.
func (r *Reconciler) PlanIssue(c IssueCandidate) (models.IssueChange, Action, []Action) {
	issue := c.Issue
	change := models.IssueChange{Key: issue.Key}

	prev, exists := r.snap.Issues[issue.Key]
	action := Skip
	switch {
	case !exists:
		action = Insert
	case issueChanged(prev, issue):
		action = Update
	}
	if action != Skip {
		change.Issue = issue
		change.New = !exists
		change.Transitions = c.Transitions
	}

	actions := make([]Action, len(c.Records))
	for i, rec := range c.Records {
		actions[i] = Decide(r.snap, !exists, rec)
		switch actions[i] {
		case Insert:
			change.Inserts = append(change.Inserts, rec)
		case Update:
			change.Updates = append(change.Updates, rec)
		}
	}
	return change, action, actions
}

// ApplyCommits plans and writes every commit group. A failed group is
// logged and counted; the pass continues with the next group.
func (r *Reconciler) ApplyCommits(ctx context.Context, candidates []CommitCandidate) error {
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		change, action, err := r.PlanCommit(c)
		if err != nil {
			r.fail(&r.report.Commits, c.SHA, err)
			continue
		}
		if action == Skip {
			r.report.Commits.add(Skip)
			continue
		}
		if err := r.writer.WriteCommit(ctx, change); err != nil {
			r.fail(&r.report.Commits, c.SHA, err)
			continue
		}
		r.report.Commits.add(action)
	}
	return nil
}

// ApplyIssues plans and writes every issue group, each with its
// transitions and records in one transaction.
func (r *Reconciler) ApplyIssues(ctx context.Context, candidates []IssueCandidate) error {
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		change, action, actions := r.PlanIssue(c)
		if change.Empty() {
			r.report.Issues.add(Skip)
			for range actions {
				r.report.Records.add(Skip)
			}
			continue
		}

		if err := r.writer.WriteIssue(ctx, change); err != nil {
			r.fail(&r.report.Issues, change.Key, err)
			r.report.Records.Failed += len(change.Inserts) + len(change.Updates)
			continue
		}

		r.report.Issues.add(action)
		for _, a := range actions {
			r.report.Records.add(a)
		}
	}
	return nil
}

// FailCommit records a commit that could not be fetched completely.
func (r *Reconciler) FailCommit(sha string, err error) {
	r.fail(&r.report.Commits, sha, err)
}

// FailIssue records an issue that could not be fetched completely.
func (r *Reconciler) FailIssue(key string, err error) {
	r.fail(&r.report.Issues, key, err)
}

func (r *Reconciler) fail(c *Counts, key string, err error) {
	c.Failed++
	r.report.FailedKeys = append(r.report.FailedKeys, key)
	logging.Error("Failed to reconcile record group", "key", key, "error", err)
}

// Report returns the counts so far.
func (r *Reconciler) Report() Report {
	out := r.report
	out.FailedKeys = append([]string(nil), r.report.FailedKeys...)
	return out
}
