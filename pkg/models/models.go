// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// Unknown is stored wherever an external payload omitted a value we need.
const Unknown = "Unknown"

// CommitSummary is one entry of a branch's commit listing.
type CommitSummary struct {
	// SHA is the content hash of the commit
	SHA string

	// Date is the author date reported by the listing
	Date time.Time

	// Message is the full commit message
	Message string

	// Author is the account login, or the author name when there is no account
	Author string
}

// Commit represents a commit with its essential fields.
// A commit is immutable once observed; SHA is its natural key.
type Commit struct {
	// SHA is the content hash of the commit (e.g., "9f2c...")
	SHA string

	// URL is the web URL of the commit
	URL string

	// Repository is the "owner/repo" the commit was fetched from
	Repository string

	// Author is the version-control identity that authored the commit
	Author string

	// CommittedAt is the committer timestamp
	CommittedAt time.Time

	// Message is the full commit message
	Message string

	// Branches are the branches the commit was observed on
	Branches []string

	// Files are the paths touched by the commit
	Files []FileChange

	// Additions is the total number of added lines
	Additions int

	// Deletions is the total number of removed lines
	Deletions int
}

// FileChange represents one path touched by a commit.
type FileChange struct {
	Path      string
	Additions int
	Deletions int

	// Complexity is filled by the complexity scanner; zero when unavailable
	Complexity Complexity
}

// Complexity is the result of scanning one file.
type Complexity struct {
	Lines        int
	CodeLines    int
	CommentLines int
	Complexity   int
	Language     string
}

// Issue represents a tracker issue with its key properties.
type Issue struct {
	// Key is the full issue identifier (e.g., "ABC-123")
	Key string

	// Summary is the issue's title
	Summary string

	// Status is the current workflow status
	Status string

	// Priority is the issue priority name
	Priority string

	// Assignee is the display name of the assignee, empty when unassigned
	Assignee string

	// AssigneeEmail is the assignee's e-mail address when the tracker exposes it
	AssigneeEmail string

	// Reporter is the display name of the reporter
	Reporter string

	// Type is the issue type (e.g., "Story", "Bug")
	Type string

	// Sprint is the name of the first sprint the issue belongs to
	Sprint string

	// Parent is the key of the parent issue, if any
	Parent string

	// Links are the issue's relationships to other issues
	Links []IssueLink

	// Created is the timestamp when the issue was created
	Created time.Time

	// Updated is the timestamp of the last update
	Updated time.Time
}

// IssueLink is one relationship between two issues.
type IssueLink struct {
	// Type is the lower-cased relationship phrase (e.g., "blocks", "is blocked by", "parent")
	Type string

	// Key is the linked issue key
	Key string
}

// ChangelogItem is one field change inside a changelog entry.
type ChangelogItem struct {
	Field string
	From  string
	To    string
}

// ChangelogEntry is one dated group of field changes.
type ChangelogEntry struct {
	Created time.Time
	Items   []ChangelogItem
}

// Transition is one status change of an issue.
type Transition struct {
	From string
	To   string
	At   time.Time
}

// IdentityMapping associates a version-control identity with a person.
type IdentityMapping struct {
	// VCSIdentity is the normalized (lower-cased, trimmed) login or author name
	VCSIdentity string

	// OrgIdentity is the organizational display name
	OrgIdentity string

	// Authoritative marks mappings that came from configuration rather than discovery
	Authoritative bool
}

// CrossReference links a commit to an issue it mentions.
type CrossReference struct {
	IssueKey string
	SHA      string
}

// ReconciledRecord is the persisted (issue, commit) pair with its stage.
type ReconciledRecord struct {
	IssueKey    string
	SHA         string
	Status      string
	Stage       string
	Owner       string
	CommittedAt time.Time
}

// Key returns the natural key of the record.
func (r ReconciledRecord) Key() RecordKey {
	return RecordKey{IssueKey: r.IssueKey, SHA: r.SHA}
}
