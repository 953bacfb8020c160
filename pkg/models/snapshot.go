package models

import "time"

// RecordKey is the natural key of a ReconciledRecord.
type RecordKey struct {
	IssueKey string
	SHA      string
}

// RecordState is the persisted mutable part of a ReconciledRecord.
type RecordState struct {
	Status string
	Stage  string
	Owner  string
}

// IssueState is the persisted part of an issue used for change detection.
type IssueState struct {
	Status   string
	Priority string
	Assignee string
	Updated  time.Time
}

// CommitState is what the store already knows about a commit.
type CommitState struct {
	Owner    string
	Branches map[string]bool
}

// EventRef is a persisted commit that mentions an issue.
type EventRef struct {
	IssueKey string
	SHA      string
	At       time.Time
	Author   string
	Owner    string
}

// Snapshot is the persisted state read once at the start of a pass.
type Snapshot struct {
	Issues  map[string]IssueState
	Records map[RecordKey]RecordState
	Commits map[string]CommitState
	Refs    map[string][]EventRef
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Issues:  make(map[string]IssueState),
		Records: make(map[RecordKey]RecordState),
		Commits: make(map[string]CommitState),
		Refs:    make(map[string][]EventRef),
	}
}

// CommitChange is the minimal write for one commit group.
type CommitChange struct {
	SHA string

	// Commit is set when the commit is new and must be inserted with its children
	Commit *Commit

	// Branches are branch relations not yet persisted
	Branches []string

	// Owner is the resolved organizational owner of the commit author
	Owner string

	// OwnerChanged is set when a known commit's owner must be rewritten
	OwnerChanged bool

	IssueKeys []string
	Tags      []string
	Words     []string

	// FileTypes counts touched files per extension
	FileTypes map[string]int
}

// Empty reports whether the change writes nothing.
func (c CommitChange) Empty() bool {
	return c.Commit == nil && len(c.Branches) == 0 && !c.OwnerChanged
}

// IssueChange is the minimal write for one issue group.
type IssueChange struct {
	Key string

	// Issue is set when the issue row is inserted or updated
	Issue *Issue

	// New is set when the issue key was not persisted before this pass
	New bool

	Transitions []Transition
	Inserts     []ReconciledRecord
	Updates     []ReconciledRecord
}

// Empty reports whether the change writes nothing.
func (c IssueChange) Empty() bool {
	return c.Issue == nil && len(c.Inserts) == 0 && len(c.Updates) == 0
}
