package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Run is one row of the sync ledger.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time

	CommitsInserted, CommitsUpdated, CommitsSkipped, CommitsFailed int
	IssuesInserted, IssuesUpdated, IssuesSkipped, IssuesFailed     int
	RecordsInserted, RecordsUpdated, RecordsSkipped, RecordsFailed int

	FailedKeys []string
}

// RecordRun appends a run to the ledger.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs
		(id, started_at, finished_at,
		 commits_inserted, commits_updated, commits_skipped, commits_failed,
		 issues_inserted, issues_updated, issues_skipped, issues_failed,
		 records_inserted, records_updated, records_skipped, records_failed,
		 failed_keys)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, formatTime(r.StartedAt), formatTime(r.FinishedAt),
		r.CommitsInserted, r.CommitsUpdated, r.CommitsSkipped, r.CommitsFailed,
		r.IssuesInserted, r.IssuesUpdated, r.IssuesSkipped, r.IssuesFailed,
		r.RecordsInserted, r.RecordsUpdated, r.RecordsSkipped, r.RecordsFailed,
		strings.Join(r.FailedKeys, ","),
	)
	return wrapDBError(fmt.Sprintf("record run %s", r.ID), err)
}

// LastRun returns the most recently finished run.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	var r Run
	var startedAt, finishedAt, failed string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at,
		       commits_inserted, commits_updated, commits_skipped, commits_failed,
		       issues_inserted, issues_updated, issues_skipped, issues_failed,
		       records_inserted, records_updated, records_skipped, records_failed,
		       failed_keys
		FROM sync_runs
		ORDER BY finished_at DESC
		LIMIT 1
	`).Scan(
		&r.ID, &startedAt, &finishedAt,
		&r.CommitsInserted, &r.CommitsUpdated, &r.CommitsSkipped, &r.CommitsFailed,
		&r.IssuesInserted, &r.IssuesUpdated, &r.IssuesSkipped, &r.IssuesFailed,
		&r.RecordsInserted, &r.RecordsUpdated, &r.RecordsSkipped, &r.RecordsFailed,
		&failed,
	)
	if err != nil {
		return nil, wrapDBError("query last run", err)
	}

	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at of run %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at of run %s: %w", r.ID, err)
	}
	if failed != "" {
		r.FailedKeys = strings.Split(failed, ",")
	}
	return &r, nil
}
