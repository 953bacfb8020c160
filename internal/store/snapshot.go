package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielolaszy/weave/pkg/models"
)

// LoadSnapshot reads the persisted state used for change detection in
// one transaction, so every comparison in a pass sees the same data.
func (s *Store) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := models.NewSnapshot()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := loadIssueStates(ctx, tx, snap); err != nil {
			return err
		}
		if err := loadRecordStates(ctx, tx, snap); err != nil {
			return err
		}
		if err := loadCommitStates(ctx, tx, snap); err != nil {
			return err
		}
		return loadRefs(ctx, tx, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func loadIssueStates(ctx context.Context, tx *sql.Tx, snap *models.Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT key, status, priority, assignee, updated_at FROM issues`)
	if err != nil {
		return wrapDBError("query issues", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, updated string
		var st models.IssueState
		if err := rows.Scan(&key, &st.Status, &st.Priority, &st.Assignee, &updated); err != nil {
			return wrapDBError("scan issue", err)
		}
		if st.Updated, err = parseTime(updated); err != nil {
			return fmt.Errorf("parse updated_at of issue %s: %w", key, err)
		}
		snap.Issues[key] = st
	}
	return wrapDBError("iterate issues", rows.Err())
}

func loadRecordStates(ctx context.Context, tx *sql.Tx, snap *models.Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT issue_key, sha, status, stage, owner FROM reconciled_records`)
	if err != nil {
		return wrapDBError("query records", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k models.RecordKey
		var st models.RecordState
		if err := rows.Scan(&k.IssueKey, &k.SHA, &st.Status, &st.Stage, &st.Owner); err != nil {
			return wrapDBError("scan record", err)
		}
		snap.Records[k] = st
	}
	return wrapDBError("iterate records", rows.Err())
}

func loadCommitStates(ctx context.Context, tx *sql.Tx, snap *models.Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT sha, owner FROM commits`)
	if err != nil {
		return wrapDBError("query commits", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sha, owner string
		if err := rows.Scan(&sha, &owner); err != nil {
			return wrapDBError("scan commit", err)
		}
		snap.Commits[sha] = models.CommitState{Owner: owner, Branches: make(map[string]bool)}
	}
	if err := rows.Err(); err != nil {
		return wrapDBError("iterate commits", err)
	}

	branches, err := tx.QueryContext(ctx, `SELECT sha, branch FROM commit_branches`)
	if err != nil {
		return wrapDBError("query branches", err)
	}
	defer branches.Close()

	for branches.Next() {
		var sha, branch string
		if err := branches.Scan(&sha, &branch); err != nil {
			return wrapDBError("scan branch", err)
		}
		if st, ok := snap.Commits[sha]; ok {
			st.Branches[branch] = true
		}
	}
	return wrapDBError("iterate branches", branches.Err())
}

func loadRefs(ctx context.Context, tx *sql.Tx, snap *models.Snapshot) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT ic.issue_key, c.sha, c.committed_at, c.author, c.owner
		FROM issue_commits ic
		JOIN commits c ON c.sha = ic.sha
		ORDER BY ic.issue_key, c.committed_at, c.sha
	`)
	if err != nil {
		return wrapDBError("query references", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref models.EventRef
		var at string
		if err := rows.Scan(&ref.IssueKey, &ref.SHA, &at, &ref.Author, &ref.Owner); err != nil {
			return wrapDBError("scan reference", err)
		}
		if ref.At, err = parseTime(at); err != nil {
			return fmt.Errorf("parse committed_at of commit %s: %w", ref.SHA, err)
		}
		snap.Refs[ref.IssueKey] = append(snap.Refs[ref.IssueKey], ref)
	}
	return wrapDBError("iterate references", rows.Err())
}
