// Package git provides the version-control adapter for local Git working trees.
// This package implements the domain.VersionControl interface using go-git/v5.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gogitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/attrsync/attrsync/internal/domain"
)

// Logger defines the logging interface for the git adapter.
// This interface enables dependency injection and testability.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// remoteName is the only remote this adapter talks to.
const remoteName = "origin"

// Options configures a GoGitRepository.
type Options struct {
	// Path is the working-tree directory.
	Path string

	// Branch is the target branch published to the remote.
	Branch string

	// RemoteURL is the authenticated remote URL. When the repository has no
	// origin remote yet, one is created with this URL.
	RemoteURL string

	// Username and Token authenticate fetches and pushes over HTTPS. Either
	// both set, or both empty (credentials embedded in RemoteURL).
	Username string
	Token    string

	// CommitterName and CommitterEmail identify the daemon when the system
	// git binary rewrites commits during a rebase.
	CommitterName  string
	CommitterEmail string
}

// GoGitRepository implements domain.VersionControl for a single working tree.
// One synchronization cycle has exclusive use of the repository for its whole
// duration; nothing here is safe for concurrent use.
type GoGitRepository struct {
	repo   *gogit.Repository
	wt     *gogit.Worktree
	opts   Options
	auth   transport.AuthMethod
	logger Logger
}

// NewGoGitRepository opens the working tree at opts.Path.
// Returns domain.ErrRepositoryNotFound if the path is not a valid Git
// repository; this is the precondition check performed once before any cycle.
func NewGoGitRepository(opts Options, log Logger) (*GoGitRepository, error) {
	repo, err := gogit.PlainOpen(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, opts.Path)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no working tree", domain.ErrRepositoryNotFound, opts.Path)
	}

	var auth transport.AuthMethod
	if opts.Username != "" && opts.Token != "" {
		auth = &githttp.BasicAuth{Username: opts.Username, Password: opts.Token}
	}

	r := &GoGitRepository{repo: repo, wt: wt, opts: opts, auth: auth, logger: log}
	if err := r.ensureRemote(); err != nil {
		return nil, err
	}
	return r, nil
}

// ensureRemote creates the origin remote from the configured URL when the
// repository does not have one yet.
func (r *GoGitRepository) ensureRemote() error {
	_, err := r.repo.Remote(remoteName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gogit.ErrRemoteNotFound) {
		return fmt.Errorf("inspect %s remote: %w", remoteName, err)
	}
	if r.opts.RemoteURL == "" {
		return fmt.Errorf("no %s remote configured and no remote URL provided", remoteName)
	}

	_, err = r.repo.CreateRemote(&gogitcfg.RemoteConfig{
		Name:  remoteName,
		URLs:  []string{r.opts.RemoteURL},
		Fetch: []gogitcfg.RefSpec{gogitcfg.RefSpec("+refs/heads/*:refs/remotes/origin/*")},
	})
	if err != nil {
		return fmt.Errorf("create %s remote: %w", remoteName, err)
	}
	return nil
}

// Status enumerates pending changes, untracked files included. go-git
// delivers paths structurally rather than through text parsing, so paths
// containing whitespace or special characters arrive intact. Entries are
// sorted by path for determinism.
func (r *GoGitRepository) Status(ctx context.Context) ([]domain.ChangeEntry, error) {
	status, err := r.wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	entries := make([]domain.ChangeEntry, 0, len(status))
	for path, fs := range status {
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		entries = append(entries, domain.ChangeEntry{
			Code: string([]byte{byte(fs.Staging), byte(fs.Worktree)}),
			Path: path,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	r.logger.Debug(ctx, "enumerated working-tree status", map[string]interface{}{
		"pending": len(entries),
	})
	return entries, nil
}

// Stage records the path's current content in the index.
func (r *GoGitRepository) Stage(_ context.Context, path string) error {
	if _, err := r.wt.Add(path); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	return nil
}

// Remove drops the path from tracking. A path that is already untracked or
// already gone is not an error.
func (r *GoGitRepository) Remove(_ context.Context, path string) error {
	_, err := r.wt.Remove(path)
	if err == nil || errors.Is(err, index.ErrEntryNotFound) || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("remove %s: %w", path, err)
}

// Commit creates one commit carrying id as both author and committer. The
// daemon's process-wide identity is never touched.
func (r *GoGitRepository) Commit(_ context.Context, message string, id domain.Identity) error {
	sig := &object.Signature{Name: id.Name, Email: id.Email, When: time.Now()}
	_, err := r.wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig})
	if errors.Is(err, gogit.ErrEmptyCommit) {
		return fmt.Errorf("%w: %s", domain.ErrNothingStaged, message)
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Fetch updates the remote tracking ref for the target branch.
func (r *GoGitRepository) Fetch(ctx context.Context) error {
	spec := fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", r.opts.Branch, remoteName, r.opts.Branch)
	err := r.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gogitcfg.RefSpec{gogitcfg.RefSpec(spec)},
		Auth:       r.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch %s: %w", r.opts.Branch, err)
	}
	return nil
}

// AheadCount reports how many commits HEAD carries that the remote tracking
// tip does not, i.e. commits reachable from HEAD but not from the remote tip.
// Diverged histories therefore count only the local side past the merge base.
// A missing tracking ref (branch never pushed) counts the whole local
// ancestry.
func (r *GoGitRepository) AheadCount(ctx context.Context) (int, error) {
	head, err := r.repo.Head()
	if err != nil {
		return 0, fmt.Errorf("resolve HEAD: %w", err)
	}

	var remoteHash plumbing.Hash
	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, r.opts.Branch), true)
	switch {
	case err == nil:
		remoteHash = remoteRef.Hash()
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Branch has never been published.
	default:
		return 0, fmt.Errorf("resolve remote tracking ref: %w", err)
	}

	if head.Hash() == remoteHash {
		return 0, nil
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return 0, fmt.Errorf("resolve HEAD commit: %w", err)
	}

	remoteAncestry := map[plumbing.Hash]bool{}
	if !remoteHash.IsZero() {
		remoteCommit, err := r.repo.CommitObject(remoteHash)
		if err != nil {
			return 0, fmt.Errorf("resolve remote tip commit: %w", err)
		}
		err = object.NewCommitPreorderIter(remoteCommit, nil, nil).ForEach(func(c *object.Commit) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			remoteAncestry[c.Hash] = true
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("walk remote history: %w", err)
		}
	}

	count := 0
	err = object.NewCommitPreorderIter(commit, remoteAncestry, nil).ForEach(func(c *object.Commit) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk local history: %w", err)
	}

	r.logger.Debug(ctx, "computed ahead count", map[string]interface{}{
		"ahead":  count,
		"branch": r.opts.Branch,
	})
	return count, nil
}

// Push publishes the local branch tip to the remote branch.
func (r *GoGitRepository) Push(ctx context.Context) error {
	return r.push(ctx, r.opts.Branch)
}

// PushBranch publishes the named branch to the remote.
func (r *GoGitRepository) PushBranch(ctx context.Context, name string) error {
	return r.push(ctx, name)
}

func (r *GoGitRepository) push(ctx context.Context, branch string) error {
	spec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
	err := r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gogitcfg.RefSpec{gogitcfg.RefSpec(spec)},
		Auth:       r.auth,
	})
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return nil
	case strings.Contains(err.Error(), "non-fast-forward"):
		return fmt.Errorf("%w: %s", domain.ErrPushRejected, branch)
	default:
		return fmt.Errorf("push %s: %w", branch, err)
	}
}

// Rebase replays local commits onto the remote tracking branch using the
// system git binary; go-git does not implement rebase. On failure the rebase
// is aborted so the branch is left exactly as it was.
func (r *GoGitRepository) Rebase(ctx context.Context) error {
	target := fmt.Sprintf("refs/remotes/%s/%s", remoteName, r.opts.Branch)
	cmd := exec.CommandContext(ctx, "git", "-C", r.opts.Path, "rebase", target)
	cmd.Env = append(os.Environ(),
		"GIT_COMMITTER_NAME="+r.opts.CommitterName,
		"GIT_COMMITTER_EMAIL="+r.opts.CommitterEmail,
	)

	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	abort := exec.CommandContext(ctx, "git", "-C", r.opts.Path, "rebase", "--abort")
	if abortErr := abort.Run(); abortErr != nil {
		r.logger.Warn(ctx, "rebase abort failed", map[string]interface{}{
			"error": abortErr.Error(),
		})
	}
	return fmt.Errorf("%w: %s", domain.ErrRebaseFailed, strings.TrimSpace(string(out)))
}

// CreateBranch points a new branch at the current HEAD.
func (r *GoGitRepository) CreateBranch(_ context.Context, name string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}
