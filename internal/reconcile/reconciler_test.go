package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/weave/pkg/models"
)

// MockWriter is a mock implementation of Writer.
type MockWriter struct {
	WriteCommitFunc func(ctx context.Context, change models.CommitChange) error
	WriteIssueFunc  func(ctx context.Context, change models.IssueChange) error
	commits         []models.CommitChange
	issues          []models.IssueChange
}

func (m *MockWriter) WriteCommit(ctx context.Context, change models.CommitChange) error {
	if m.WriteCommitFunc != nil {
		if err := m.WriteCommitFunc(ctx, change); err != nil {
			return err
		}
	}
	m.commits = append(m.commits, change)
	return nil
}

func (m *MockWriter) WriteIssue(ctx context.Context, change models.IssueChange) error {
	if m.WriteIssueFunc != nil {
		if err := m.WriteIssueFunc(ctx, change); err != nil {
			return err
		}
	}
	m.issues = append(m.issues, change)
	return nil
}

var updated = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

func record(key, sha, status, stage string) models.ReconciledRecord {
	return models.ReconciledRecord{IssueKey: key, SHA: sha, Status: status, Stage: stage, Owner: "Ada"}
}

func TestDecide(t *testing.T) {
	snap := models.NewSnapshot()
	snap.Records[models.RecordKey{IssueKey: "ABC-1", SHA: "aaa"}] = models.RecordState{Status: "Done", Stage: "In Progress", Owner: "Ada"}

	tests := []struct {
		name        string
		parentIsNew bool
		rec         models.ReconciledRecord
		want        Action
	}{
		{name: "absent", rec: record("ABC-1", "bbb", "Done", "In Progress"), want: Insert},
		{name: "unchanged", rec: record("ABC-1", "aaa", "Done", "In Progress"), want: Skip},
		{name: "status changed", rec: record("ABC-1", "aaa", "Closed", "In Progress"), want: Update},
		{name: "stage changed", rec: record("ABC-1", "aaa", "Done", "Review"), want: Update},
		{name: "new parent forces insert over existing row", parentIsNew: true, rec: record("ABC-1", "aaa", "Done", "In Progress"), want: Insert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(snap, tt.parentIsNew, tt.rec))
		})
	}
}

func TestPlanCommit(t *testing.T) {
	snap := models.NewSnapshot()
	snap.Commits["known"] = models.CommitState{Owner: "Ada", Branches: map[string]bool{"main": true}}
	r := New(snap, &MockWriter{})

	t.Run("new commit inserts with every branch", func(t *testing.T) {
		detail := &models.Commit{SHA: "fresh"}
		change, action, err := r.PlanCommit(CommitCandidate{SHA: "fresh", Branches: []string{"main", "dev"}, Detail: detail})
		require.NoError(t, err)
		assert.Equal(t, Insert, action)
		assert.Same(t, detail, change.Commit)
		assert.Equal(t, []string{"main", "dev"}, change.Branches)
	})

	t.Run("new commit without detail fails", func(t *testing.T) {
		_, _, err := r.PlanCommit(CommitCandidate{SHA: "fresh"})
		assert.Error(t, err)
	})

	t.Run("known commit on known branch skips", func(t *testing.T) {
		_, action, err := r.PlanCommit(CommitCandidate{SHA: "known", Branches: []string{"main"}, Owner: "Ada"})
		require.NoError(t, err)
		assert.Equal(t, Skip, action)
	})

	t.Run("known commit on new branch updates branches only", func(t *testing.T) {
		change, action, err := r.PlanCommit(CommitCandidate{SHA: "known", Branches: []string{"main", "release"}, Owner: "Ada"})
		require.NoError(t, err)
		assert.Equal(t, Update, action)
		assert.Nil(t, change.Commit)
		assert.Equal(t, []string{"release"}, change.Branches)
		assert.False(t, change.OwnerChanged)
	})

	t.Run("resolved owner differs", func(t *testing.T) {
		change, action, err := r.PlanCommit(CommitCandidate{SHA: "known", Branches: []string{"main"}, Owner: "Ada Lovelace"})
		require.NoError(t, err)
		assert.Equal(t, Update, action)
		assert.True(t, change.OwnerChanged)
	})
}

func TestApplyIssuesPrecedenceAndCounts(t *testing.T) {
	snap := models.NewSnapshot()
	snap.Issues["OLD-1"] = models.IssueState{Status: "In Progress", Priority: "High", Assignee: "Ada", Updated: updated}
	snap.Records[models.RecordKey{IssueKey: "OLD-1", SHA: "s1"}] = models.RecordState{Status: "In Progress", Stage: "To Do", Owner: "Ada"}
	// Colliding row for an issue key this snapshot does not know yet.
	snap.Records[models.RecordKey{IssueKey: "NEW-1", SHA: "s1"}] = models.RecordState{Status: "Done", Stage: "To Do", Owner: "Ada"}

	writer := &MockWriter{}
	r := New(snap, writer)

	oldIssue := &models.Issue{Key: "OLD-1", Status: "In Progress", Priority: "High", Assignee: "Ada", Updated: updated}
	newIssue := &models.Issue{Key: "NEW-1", Status: "Done", Updated: updated}

	err := r.ApplyIssues(context.Background(), []IssueCandidate{
		{Issue: oldIssue, Records: []models.ReconciledRecord{
			record("OLD-1", "s1", "In Progress", "To Do"),
			record("OLD-1", "s2", "In Progress", "In Progress"),
		}},
		{Issue: newIssue, Records: []models.ReconciledRecord{record("NEW-1", "s1", "Done", "To Do")}},
	})
	require.NoError(t, err)

	require.Len(t, writer.issues, 2)
	assert.Nil(t, writer.issues[0].Issue, "unchanged issue row is not rewritten")
	assert.Len(t, writer.issues[0].Inserts, 1)
	assert.True(t, writer.issues[1].New)
	assert.Len(t, writer.issues[1].Inserts, 1, "new parent inserts despite colliding row")

	rep := r.Report()
	assert.Equal(t, Counts{Inserted: 1, Skipped: 1}, rep.Issues)
	assert.Equal(t, Counts{Inserted: 2, Skipped: 1}, rep.Records)
	assert.Empty(t, rep.FailedKeys)
}

func TestApplyIssuesUnchangedWritesNothing(t *testing.T) {
	snap := models.NewSnapshot()
	snap.Issues["ABC-1"] = models.IssueState{Status: "Done", Updated: updated}
	snap.Records[models.RecordKey{IssueKey: "ABC-1", SHA: "s1"}] = models.RecordState{Status: "Done", Stage: "Done", Owner: "Ada"}

	writer := &MockWriter{}
	r := New(snap, writer)
	err := r.ApplyIssues(context.Background(), []IssueCandidate{{
		Issue:   &models.Issue{Key: "ABC-1", Status: "Done", Updated: updated},
		Records: []models.ReconciledRecord{record("ABC-1", "s1", "Done", "Done")},
	}})
	require.NoError(t, err)
	assert.Empty(t, writer.issues)
	assert.Equal(t, Counts{Skipped: 1}, r.Report().Records)
}

func TestApplyContinuesAfterGroupFailure(t *testing.T) {
	writer := &MockWriter{WriteIssueFunc: func(_ context.Context, change models.IssueChange) error {
		if change.Key == "BAD-1" {
			return errors.New("constraint failed")
		}
		return nil
	}}
	r := New(nil, writer)

	err := r.ApplyIssues(context.Background(), []IssueCandidate{
		{Issue: &models.Issue{Key: "BAD-1"}, Records: []models.ReconciledRecord{record("BAD-1", "s1", "", "To Do")}},
		{Issue: &models.Issue{Key: "GOOD-1"}},
	})
	require.NoError(t, err)

	rep := r.Report()
	assert.Equal(t, []string{"BAD-1"}, rep.FailedKeys)
	assert.Equal(t, Counts{Inserted: 1, Failed: 1}, rep.Issues)
	assert.Equal(t, 1, rep.Records.Failed)
	require.Len(t, writer.issues, 1)
	assert.Equal(t, "GOOD-1", writer.issues[0].Key)
}

func TestApplyCommitsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(nil, &MockWriter{})
	err := r.ApplyCommits(ctx, []CommitCandidate{{SHA: "a", Detail: &models.Commit{SHA: "a"}}})
	assert.ErrorIs(t, err, context.Canceled)
}
