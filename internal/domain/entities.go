// Package domain defines the core business entities and interfaces for attrsync.
package domain

import "time"

// ChangeEntry is one pending working-tree change as reported by the
// version-control status enumeration.
type ChangeEntry struct {
	// Code is the two-character status tuple: index state followed by
	// worktree state, using git's short-status convention ("??" for
	// untracked, " M" for modified, " D" for deleted, ...).
	Code string

	// Path is the path of the changed file, relative to the repository root.
	// Never empty for a valid entry.
	Path string
}

// ChangeKind is the classification bucket a ChangeEntry falls into.
type ChangeKind int

const (
	// ChangeAddition is a new, previously untracked path.
	ChangeAddition ChangeKind = iota

	// ChangeDeletion is a path removed from the working tree.
	ChangeDeletion

	// ChangeModification covers every remaining state: plain edits,
	// add-then-modify, renames surfaced as modify.
	ChangeModification
)

// String returns the commit-message verb for the classification bucket.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAddition:
		return "Add"
	case ChangeDeletion:
		return "Delete"
	default:
		return "Update"
	}
}

// AttributionRecord is the resolved authorship for a single path in a single
// run. A zero record means "nothing resolved, use the default identity".
type AttributionRecord struct {
	// Username is the record-store account that most plausibly made the
	// change. Empty when nothing resolved.
	Username string

	// DisplayName is the human-readable name of the resolved user.
	DisplayName string

	// Email is the resolved contact address.
	Email string
}

// IsZero reports whether no user was resolved at any stage.
func (r AttributionRecord) IsZero() bool {
	return r.Username == "" && r.DisplayName == "" && r.Email == ""
}

// Identity is a concrete name/email pair used as commit author and committer.
type Identity struct {
	Name  string
	Email string
}

// ActivityEntry is one row of the record store's activity log, the
// evidentiary source for attribution. Rows are always delivered most recent
// first, ties broken by descending log sequence.
type ActivityEntry struct {
	// User is the acting account for the logged action.
	User string

	// Timestamp is the Unix time of the action.
	Timestamp int64

	// Sequence is the log's insertion-order identifier, used only as a
	// tie-break within the same timestamp.
	Sequence int64
}

// CommitRecord describes one commit produced by the commit builder. Owned by
// the builder for the duration of a run; once committed it is permanent
// history and never mutated.
type CommitRecord struct {
	Message     string
	AuthorName  string
	AuthorEmail string
}

// SyncOutcome is the terminal result of one publication attempt.
type SyncOutcome struct {
	// AheadCount is the number of local commits not yet on the remote
	// tracking branch at the start of publication.
	AheadCount int

	// Published reports whether the primary branch reached the remote.
	Published bool

	// ConflictBranch is the name of the escape branch pushed for manual
	// reconciliation, or empty when none was needed.
	ConflictBranch string
}

// CycleReport summarises one full cycle for the run report.
type CycleReport struct {
	Started time.Time
	Changes int
	Commits []CommitRecord
	Outcome SyncOutcome
}
