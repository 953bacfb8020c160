package store

import (
	"context"
	"fmt"

	"github.com/danielolaszy/weave/pkg/models"
)

// RecordsForIssue returns the reconciled records of an issue in commit order.
func (s *Store) RecordsForIssue(ctx context.Context, key string) ([]models.ReconciledRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_key, sha, status, stage, owner, committed_at
		FROM reconciled_records
		WHERE issue_key = ?
		ORDER BY committed_at, sha
	`, key)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("query records of issue %s", key), err)
	}
	defer rows.Close()

	var out []models.ReconciledRecord
	for rows.Next() {
		var r models.ReconciledRecord
		var at string
		if err := rows.Scan(&r.IssueKey, &r.SHA, &r.Status, &r.Stage, &r.Owner, &at); err != nil {
			return nil, wrapDBError("scan record", err)
		}
		if r.CommittedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("parse committed_at of record %s@%s: %w", r.IssueKey, r.SHA, err)
		}
		out = append(out, r)
	}
	return out, wrapDBError("iterate records", rows.Err())
}

// TransitionsForIssue returns the stored status transitions of an issue.
func (s *Store) TransitionsForIssue(ctx context.Context, key string) ([]models.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_stage, to_stage, changed_at
		FROM issue_transitions
		WHERE issue_key = ?
		ORDER BY changed_at
	`, key)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("query transitions of issue %s", key), err)
	}
	defer rows.Close()

	var out []models.Transition
	for rows.Next() {
		var t models.Transition
		var at string
		if err := rows.Scan(&t.From, &t.To, &at); err != nil {
			return nil, wrapDBError("scan transition", err)
		}
		if t.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("parse changed_at of issue %s: %w", key, err)
		}
		out = append(out, t)
	}
	return out, wrapDBError("iterate transitions", rows.Err())
}
