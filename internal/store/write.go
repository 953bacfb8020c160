package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/danielolaszy/weave/pkg/models"
)

// WriteCommit persists one commit group in a single transaction. A new
// commit is inserted with its files, tags, words and cross references;
// a known commit only gains branches or an owner.
func (s *Store) WriteCommit(ctx context.Context, change models.CommitChange) error {
	now := formatTime(s.now())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if c := change.Commit; c != nil {
			if err := insertCommit(ctx, tx, c, change.Owner, now); err != nil {
				return err
			}
			if err := insertCommitChildren(ctx, tx, change); err != nil {
				return err
			}
		} else if change.OwnerChanged {
			if _, err := tx.ExecContext(ctx, `UPDATE commits SET owner = ? WHERE sha = ?`, change.Owner, change.SHA); err != nil {
				return wrapDBError(fmt.Sprintf("update owner of commit %s", change.SHA), err)
			}
		}

		for _, b := range change.Branches {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO commit_branches (sha, branch) VALUES (?, ?)
				ON CONFLICT DO NOTHING
			`, change.SHA, b); err != nil {
				return wrapDBError(fmt.Sprintf("insert branch %s of commit %s", b, change.SHA), err)
			}
		}
		return nil
	})
}

func insertCommit(ctx context.Context, tx *sql.Tx, c *models.Commit, owner, now string) error {
	if owner == "" {
		owner = models.Unknown
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO commits
		(sha, repository, url, author, owner, message, committed_at, additions, deletions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha) DO UPDATE SET owner = excluded.owner
	`,
		c.SHA,
		c.Repository,
		c.URL,
		c.Author,
		owner,
		c.Message,
		formatTime(c.CommittedAt),
		c.Additions,
		c.Deletions,
		now,
	)
	return wrapDBError(fmt.Sprintf("insert commit %s", c.SHA), err)
}

func insertCommitChildren(ctx context.Context, tx *sql.Tx, change models.CommitChange) error {
	sha := change.SHA

	for _, f := range change.Commit.Files {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO commit_files (sha, path, additions, deletions) VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, sha, f.Path, f.Additions, f.Deletions); err != nil {
			return wrapDBError(fmt.Sprintf("insert file %s of commit %s", f.Path, sha), err)
		}

		if f.Complexity.Language == "" {
			continue
		}
		cx := f.Complexity
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO file_complexity (sha, path, language, lines, code_lines, comment_lines, complexity)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(sha, path) DO UPDATE SET
				language = excluded.language,
				lines = excluded.lines,
				code_lines = excluded.code_lines,
				comment_lines = excluded.comment_lines,
				complexity = excluded.complexity
		`, sha, f.Path, cx.Language, cx.Lines, cx.CodeLines, cx.CommentLines, cx.Complexity); err != nil {
			return wrapDBError(fmt.Sprintf("insert complexity of %s in commit %s", f.Path, sha), err)
		}
	}

	exts := make([]string, 0, len(change.FileTypes))
	for ext := range change.FileTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO commit_file_types (sha, extension, count) VALUES (?, ?, ?)
			ON CONFLICT(sha, extension) DO UPDATE SET count = excluded.count
		`, sha, ext, change.FileTypes[ext]); err != nil {
			return wrapDBError(fmt.Sprintf("insert file type %s of commit %s", ext, sha), err)
		}
	}

	if err := insertPairs(ctx, tx, `INSERT INTO commit_tags (sha, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`, sha, change.Tags); err != nil {
		return wrapDBError(fmt.Sprintf("insert tags of commit %s", sha), err)
	}
	if err := insertPairs(ctx, tx, `INSERT INTO commit_words (sha, word) VALUES (?, ?) ON CONFLICT DO NOTHING`, sha, change.Words); err != nil {
		return wrapDBError(fmt.Sprintf("insert words of commit %s", sha), err)
	}
	for _, key := range change.IssueKeys {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO issue_commits (issue_key, sha) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, key, sha); err != nil {
			return wrapDBError(fmt.Sprintf("insert reference %s of commit %s", key, sha), err)
		}
	}
	return nil
}

func insertPairs(ctx context.Context, tx *sql.Tx, query, sha string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, sha, v); err != nil {
			return err
		}
	}
	return nil
}

// WriteIssue persists one issue group in a single transaction: the issue
// row with its links and transitions when it changed, and every inserted
// or updated record. Records are upserted on their natural key and every
// mutable column is written, so concurrent writers never leave a mixed row.
func (s *Store) WriteIssue(ctx context.Context, change models.IssueChange) error {
	now := formatTime(s.now())

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if issue := change.Issue; issue != nil {
			if err := upsertIssue(ctx, tx, issue, now); err != nil {
				return err
			}
			if err := replaceLinks(ctx, tx, issue); err != nil {
				return err
			}
			for _, t := range change.Transitions {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO issue_transitions (issue_key, changed_at, from_stage, to_stage)
					VALUES (?, ?, ?, ?)
					ON CONFLICT DO NOTHING
				`, issue.Key, formatTime(t.At), t.From, t.To); err != nil {
					return wrapDBError(fmt.Sprintf("insert transition of issue %s", issue.Key), err)
				}
			}
		}

		records := append(append([]models.ReconciledRecord(nil), change.Inserts...), change.Updates...)
		if len(records) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO reconciled_records (issue_key, sha, status, stage, owner, committed_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(issue_key, sha) DO UPDATE SET
				status = excluded.status,
				stage = excluded.stage,
				owner = excluded.owner,
				committed_at = excluded.committed_at,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return wrapDBError("prepare record upsert", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.IssueKey, r.SHA, r.Status, r.Stage, r.Owner, formatTime(r.CommittedAt), now); err != nil {
				return wrapDBError(fmt.Sprintf("upsert record %s@%s", r.IssueKey, r.SHA), err)
			}
		}
		return nil
	})
}

func upsertIssue(ctx context.Context, tx *sql.Tx, issue *models.Issue, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO issues
		(key, summary, status, priority, assignee, assignee_email, reporter, issue_type, sprint, parent_key, created_at, updated_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			summary = excluded.summary,
			status = excluded.status,
			priority = excluded.priority,
			assignee = excluded.assignee,
			assignee_email = excluded.assignee_email,
			reporter = excluded.reporter,
			issue_type = excluded.issue_type,
			sprint = excluded.sprint,
			parent_key = excluded.parent_key,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			synced_at = excluded.synced_at
	`,
		issue.Key,
		issue.Summary,
		issue.Status,
		issue.Priority,
		issue.Assignee,
		issue.AssigneeEmail,
		issue.Reporter,
		issue.Type,
		issue.Sprint,
		issue.Parent,
		formatTime(issue.Created),
		formatTime(issue.Updated),
		now,
	)
	return wrapDBError(fmt.Sprintf("upsert issue %s", issue.Key), err)
}

func replaceLinks(ctx context.Context, tx *sql.Tx, issue *models.Issue) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_links WHERE issue_key = ?`, issue.Key); err != nil {
		return wrapDBError(fmt.Sprintf("delete links of issue %s", issue.Key), err)
	}
	for _, l := range issue.Links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO issue_links (issue_key, link_type, linked_key) VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, issue.Key, l.Type, l.Key); err != nil {
			return wrapDBError(fmt.Sprintf("insert link %s of issue %s", l.Key, issue.Key), err)
		}
	}
	return nil
}
