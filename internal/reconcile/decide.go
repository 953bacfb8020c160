// Package reconcile decides, for every fetched record, whether it is new,
// changed or unchanged against a snapshot of persisted state, and hands
// the minimal delta of each record group to a Writer.
package reconcile

import (
	"github.com/danielolaszy/weave/pkg/models"
)

// Action is the outcome of comparing a candidate with persisted state.
type Action int

const (
	Skip Action = iota
	Insert
	Update
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "insert"
	case Update:
		return "update"
	default:
		return "skip"
	}
}

// Decide compares one record with the snapshot. A record whose parent
// issue is new is always inserted, even when a row with the same natural
// key already exists.
func Decide(snap *models.Snapshot, parentIsNew bool, rec models.ReconciledRecord) Action {
	if parentIsNew {
		return Insert
	}
	prev, ok := snap.Records[rec.Key()]
	if !ok {
		return Insert
	}
	if prev.Status != rec.Status || prev.Stage != rec.Stage || prev.Owner != rec.Owner {
		return Update
	}
	return Skip
}

func issueChanged(prev models.IssueState, issue *models.Issue) bool {
	return prev.Status != issue.Status ||
		prev.Priority != issue.Priority ||
		prev.Assignee != issue.Assignee ||
		!prev.Updated.Equal(issue.Updated)
}
