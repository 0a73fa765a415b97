// Package domain defines the core business entities and interfaces for attrsync.
// This package contains no external dependencies and represents the innermost layer
// of the CLEAN architecture.
package domain

import (
	"context"
	"errors"
)

// Domain errors for version-control, record-store and lock operations.
var (
	// ErrRepositoryNotFound indicates the target directory is not an
	// initialized version-control working tree.
	ErrRepositoryNotFound = errors.New("git repository not found at specified path")

	// ErrNothingStaged indicates a commit attempt found no staged content.
	ErrNothingStaged = errors.New("nothing staged for commit")

	// ErrPushRejected indicates the remote refused a push, typically because
	// it advanced since the last fetch.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrRebaseFailed indicates replaying local commits onto the remote
	// tracking branch failed; the local branch has been restored.
	ErrRebaseFailed = errors.New("rebase onto remote tracking branch failed")

	// ErrLockHeld indicates another cycle currently owns the exclusive lock.
	// Not a failure: the cycle is skipped, never queued.
	ErrLockHeld = errors.New("sync lock held by another cycle")
)

// VersionControl is the port for every operation against the working tree and
// its history. Implementations own a single repository; one cycle has
// exclusive use of it for its whole duration.
type VersionControl interface {
	// Status enumerates pending working-tree changes, untracked files
	// included, as an ordered, deterministic sequence.
	Status(ctx context.Context) ([]ChangeEntry, error)

	// Stage records the path's current content in the index.
	Stage(ctx context.Context, path string) error

	// Remove drops the path from tracking. Absence of the path is not an
	// error.
	Remove(ctx context.Context, path string) error

	// Commit creates one commit with the given message, using id as both
	// author and committer. Returns ErrNothingStaged when the index holds
	// no changes.
	Commit(ctx context.Context, message string, id Identity) error

	// Fetch updates the remote tracking refs. Callers tolerate failure.
	Fetch(ctx context.Context) error

	// AheadCount reports how many local commits are not yet on the remote
	// tracking branch.
	AheadCount(ctx context.Context) (int, error)

	// Push publishes the local branch tip to the remote branch. Returns
	// ErrPushRejected on a non-fast-forward rejection.
	Push(ctx context.Context) error

	// Rebase replays local commits on top of the remote tracking branch.
	// On failure the branch is left exactly as it was and ErrRebaseFailed
	// is returned.
	Rebase(ctx context.Context) error

	// CreateBranch points a new branch at the current HEAD.
	CreateBranch(ctx context.Context, name string) error

	// PushBranch publishes the named branch to the remote.
	PushBranch(ctx context.Context, name string) error
}

// RecordStore is the port for best-effort attribution lookups against the
// collaboration platform's database. Every method is a parameterized query
// over one table; callers treat any error as "no result".
type RecordStore interface {
	// FileIDByPath looks up the stable file identifier for a store path key.
	// ok is false when the file index has no row for the path.
	FileIDByPath(ctx context.Context, pathKey string) (id int64, ok bool, err error)

	// RecentActivityByFileID returns up to limit activity rows for the file
	// identifier, most recent first, ties broken by descending sequence.
	RecentActivityByFileID(ctx context.Context, fileID int64, limit int) ([]ActivityEntry, error)

	// SearchActivityByPath text-searches the activity log's free-text fields
	// (exact path, substring, or inside the parameters blob), same ordering
	// as RecentActivityByFileID, bounded to limit rows.
	SearchActivityByPath(ctx context.Context, path string, limit int) ([]ActivityEntry, error)

	// DisplayName returns the user-profile table's display name for the
	// account, ok=false when absent.
	DisplayName(ctx context.Context, username string) (string, bool, error)

	// EmailPreference returns the first present value among the ordered
	// email-like preference keys for the account.
	EmailPreference(ctx context.Context, username string) (string, bool, error)

	// ProfileBlob returns the raw JSON profile document for the account,
	// ok=false when absent.
	ProfileBlob(ctx context.Context, username string) ([]byte, bool, error)

	// Close releases the underlying connections.
	Close() error
}

// CycleLock guarantees at most one concurrent cycle system-wide.
type CycleLock interface {
	// Acquire takes the exclusive lock without blocking. Returns ErrLockHeld
	// when another cycle owns it.
	Acquire() error

	// Release gives the lock back. Must be called on every exit path.
	Release() error
}

// Attributor resolves the most plausible human author for a path.
type Attributor interface {
	// ResolveAuthorForPath consults the record store's lookup chain. A zero
	// record signals "use the default identity"; the method never fails.
	ResolveAuthorForPath(ctx context.Context, path string) AttributionRecord
}

// ReportWriter renders a cycle's outcome for the operator. Implementations
// must write to the diagnostic stream only, never to stdout.
type ReportWriter interface {
	WriteReport(report CycleReport) error
}
