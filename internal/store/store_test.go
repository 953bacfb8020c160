package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/weave/pkg/models"
)

var committed = time.Date(2024, 4, 10, 8, 30, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "weave.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func totalChanges(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT total_changes()`).Scan(&n))
	return n
}

func newCommitChange(sha string, keys ...string) models.CommitChange {
	return models.CommitChange{
		SHA: sha,
		Commit: &models.Commit{
			SHA:         sha,
			Repository:  "acme/widgets",
			Author:      "octocat",
			CommittedAt: committed,
			Message:     "fix things",
			Files: []models.FileChange{
				{Path: "main.go", Additions: 3, Deletions: 1, Complexity: models.Complexity{Lines: 10, CodeLines: 8, Language: "Go"}},
				{Path: "README.md", Additions: 1},
			},
		},
		Branches:  []string{"main"},
		Owner:     "Mona Lisa",
		IssueKeys: keys,
		Tags:      []string{"No tag found"},
		Words:     []string{"fix", "things"},
		FileTypes: map[string]int{".go": 1, ".md": 1},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weave.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestWriteCommitAndSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteCommit(ctx, newCommitChange("abc123", "PROJ-1")))
	require.NoError(t, s.WriteCommit(ctx, models.CommitChange{SHA: "abc123", Branches: []string{"release"}}))

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)

	st, ok := snap.Commits["abc123"]
	require.True(t, ok)
	assert.Equal(t, "Mona Lisa", st.Owner)
	assert.Equal(t, map[string]bool{"main": true, "release": true}, st.Branches)

	require.Len(t, snap.Refs["PROJ-1"], 1)
	ref := snap.Refs["PROJ-1"][0]
	assert.Equal(t, "abc123", ref.SHA)
	assert.True(t, committed.Equal(ref.At))
	assert.Equal(t, "octocat", ref.Author)

	var files, complexity, types int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM commit_files WHERE sha = ?`, "abc123").Scan(&files))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM file_complexity WHERE sha = ?`, "abc123").Scan(&complexity))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM commit_file_types WHERE sha = ?`, "abc123").Scan(&types))
	assert.Equal(t, 2, files)
	assert.Equal(t, 1, complexity)
	assert.Equal(t, 2, types)
}

func TestWriteCommitOwnerChange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteCommit(ctx, newCommitChange("abc123")))
	require.NoError(t, s.WriteCommit(ctx, models.CommitChange{SHA: "abc123", Owner: "Ada Lovelace", OwnerChanged: true}))

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", snap.Commits["abc123"].Owner)
}

func TestWriteIssueUpsertsRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteCommit(ctx, newCommitChange("abc123", "PROJ-1")))

	issue := &models.Issue{
		Key:     "PROJ-1",
		Status:  "In Progress",
		Updated: committed.Add(time.Hour),
		Links:   []models.IssueLink{{Type: "blocks", Key: "PROJ-2"}, {Type: "parent", Key: "PROJ-0"}},
	}
	rec := models.ReconciledRecord{IssueKey: "PROJ-1", SHA: "abc123", Status: "In Progress", Stage: "To Do", Owner: "Mona Lisa", CommittedAt: committed}
	require.NoError(t, s.WriteIssue(ctx, models.IssueChange{
		Key:         "PROJ-1",
		Issue:       issue,
		New:         true,
		Transitions: []models.Transition{{From: "To Do", To: "In Progress", At: committed.Add(time.Minute)}},
		Inserts:     []models.ReconciledRecord{rec},
	}))

	rec.Status = "Done"
	issue.Status = "Done"
	issue.Links = issue.Links[:1]
	require.NoError(t, s.WriteIssue(ctx, models.IssueChange{Key: "PROJ-1", Issue: issue, Updates: []models.ReconciledRecord{rec}}))

	records, err := s.RecordsForIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Done", records[0].Status)
	assert.Equal(t, "To Do", records[0].Stage)

	var links int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM issue_links WHERE issue_key = ?`, "PROJ-1").Scan(&links))
	assert.Equal(t, 1, links)

	transitions, err := s.TransitionsForIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	assert.Len(t, transitions, 1)

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Done", snap.Issues["PROJ-1"].Status)
	assert.True(t, issue.Updated.Equal(snap.Issues["PROJ-1"].Updated))
	assert.Equal(t, models.RecordState{Status: "Done", Stage: "To Do", Owner: "Mona Lisa"},
		snap.Records[models.RecordKey{IssueKey: "PROJ-1", SHA: "abc123"}])
}

func TestWriteIssueRollsBackGroup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`
		CREATE TRIGGER reject_bad_record BEFORE INSERT ON reconciled_records
		WHEN NEW.sha = 'bad'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END
	`)
	require.NoError(t, err)

	err = s.WriteIssue(ctx, models.IssueChange{
		Key:   "PROJ-9",
		Issue: &models.Issue{Key: "PROJ-9", Status: "Done"},
		New:   true,
		Inserts: []models.ReconciledRecord{
			{IssueKey: "PROJ-9", SHA: "good", Status: "Done", Stage: "Done", Owner: "Ada"},
			{IssueKey: "PROJ-9", SHA: "bad", Status: "Done", Stage: "Done", Owner: "Ada"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROJ-9@bad")

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Issues)
	assert.Empty(t, snap.Records)

	// Other groups still commit.
	require.NoError(t, s.WriteIssue(ctx, models.IssueChange{Key: "PROJ-10", Issue: &models.Issue{Key: "PROJ-10"}, New: true}))
}

func TestConcurrentWritersLastWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteCommit(ctx, newCommitChange("abc123", "PROJ-1")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := fmt.Sprintf("status-%d", i)
			rec := models.ReconciledRecord{IssueKey: "PROJ-1", SHA: "abc123", Status: status, Stage: "stage-" + status, Owner: "owner-" + status, CommittedAt: committed}
			assert.NoError(t, s.WriteIssue(ctx, models.IssueChange{Key: "PROJ-1", Updates: []models.ReconciledRecord{rec}}))
		}(i)
	}
	wg.Wait()

	records, err := s.RecordsForIssue(ctx, "PROJ-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "stage-"+r.Status, r.Stage, "row mixes values from different writers")
	assert.Equal(t, "owner-"+r.Status, r.Owner, "row mixes values from different writers")
}

func TestIdentities(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveIdentities(ctx, []models.IdentityMapping{
		{VCSIdentity: "ada", OrgIdentity: "Ada Lovelace", Authoritative: true},
		{VCSIdentity: "hubot", OrgIdentity: "Hu Bot"},
	}))
	require.NoError(t, s.SaveIdentities(ctx, []models.IdentityMapping{
		{VCSIdentity: "ada", OrgIdentity: "Ada Byron"},
		{VCSIdentity: "hubot", OrgIdentity: "Hubert Bot"},
	}))

	got, err := s.LoadIdentities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.IdentityMapping{
		{VCSIdentity: "ada", OrgIdentity: "Ada Lovelace", Authoritative: true},
		{VCSIdentity: "hubot", OrgIdentity: "Hubert Bot"},
	}, got)

	require.NoError(t, s.DeleteIdentity(ctx, "hubot"))
	assert.ErrorIs(t, s.DeleteIdentity(ctx, "hubot"), ErrNotFound)
}

func TestRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LastRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	run := Run{
		ID:              "run-1",
		StartedAt:       committed,
		FinishedAt:      committed.Add(time.Minute),
		CommitsInserted: 4,
		RecordsFailed:   1,
		FailedKeys:      []string{"PROJ-3", "deadbeef"},
	}
	require.NoError(t, s.RecordRun(ctx, run))

	got, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, 4, got.CommitsInserted)
	assert.Equal(t, []string{"PROJ-3", "deadbeef"}, got.FailedKeys)
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
}

func TestReadsWriteNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteCommit(ctx, newCommitChange("abc123")))

	before := totalChanges(t, s)
	_, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	_, err = s.LoadIdentities(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, totalChanges(t, s))
}
