package engine

import (
	"context"

	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/internal/reconcile"
	"github.com/danielolaszy/weave/internal/timeline"
	"github.com/danielolaszy/weave/pkg/models"
)

// reconcileIssues maps every referencing commit of each issue onto the
// issue's status timeline and applies the resulting groups.
func (e *Engine) reconcileIssues(ctx context.Context, rec *reconcile.Reconciler, snap *models.Snapshot, issues []models.Issue, passRefs map[string][]models.EventRef, initial string) error {
	seen := make(map[string]bool, len(issues))
	var candidates []reconcile.IssueCandidate

	for i := range issues {
		issue := &issues[i]
		if seen[issue.Key] {
			continue
		}
		seen[issue.Key] = true

		transitions, err := e.Issues.Transitions(ctx, issue.Key)
		switch {
		case isCancel(ctx, err):
			return err
		case isNotFound(err):
			logging.Info("Issue disappeared before its changelog was fetched", "key", issue.Key)
			continue
		case err != nil:
			rec.FailIssue(issue.Key, err)
			continue
		}

		refs := mergeRefs(snap.Refs[issue.Key], passRefs[issue.Key])
		candidates = append(candidates, reconcile.IssueCandidate{
			Issue:       issue,
			Transitions: transitions,
			Records:     e.records(issue, refs, transitions, initial),
		})
	}

	return rec.ApplyIssues(ctx, candidates)
}

// records builds one reconciled record per referencing commit.
func (e *Engine) records(issue *models.Issue, refs []models.EventRef, transitions []models.Transition, initial string) []models.ReconciledRecord {
	if len(refs) == 0 {
		return nil
	}

	events := make([]timeline.Event, len(refs))
	bySHA := make(map[string]models.EventRef, len(refs))
	for i, r := range refs {
		events[i] = timeline.Event{ID: r.SHA, At: r.At}
		bySHA[r.SHA] = r
	}

	assignments := timeline.Assign(events, transitions, initial)
	out := make([]models.ReconciledRecord, 0, len(assignments))
	for _, a := range assignments {
		ref := bySHA[a.EventID]
		out = append(out, models.ReconciledRecord{
			IssueKey:    issue.Key,
			SHA:         ref.SHA,
			Status:      issue.Status,
			Stage:       a.Stage,
			Owner:       e.owner(ref),
			CommittedAt: ref.At,
		})
	}
	return out
}

// owner prefers a current mapping over the owner stored with the commit.
func (e *Engine) owner(ref models.EventRef) string {
	if org, ok := e.Resolver.Resolve(ref.Author); ok {
		return org
	}
	if ref.Owner != "" {
		return ref.Owner
	}
	return models.Unknown
}

// mergeRefs concatenates persisted and fresh references, dropping
// duplicates by commit.
func mergeRefs(persisted, fresh []models.EventRef) []models.EventRef {
	out := make([]models.EventRef, 0, len(persisted)+len(fresh))
	seen := make(map[string]bool, cap(out))
	for _, list := range [][]models.EventRef{persisted, fresh} {
		for _, r := range list {
			if seen[r.SHA] {
				continue
			}
			seen[r.SHA] = true
			out = append(out, r)
		}
	}
	return out
}
