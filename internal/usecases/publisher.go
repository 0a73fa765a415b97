package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/attrsync/attrsync/internal/domain"
)

// conflictBranchPrefix names the side branches created when local history
// cannot be cleanly published.
const conflictBranchPrefix = "sync-conflict"

// Publisher reconciles local commits with the shared remote branch. The
// remote is treated optimistically: other writers may advance it at any time,
// and rejection is handled by a single rebase-and-retry, never by a lock. If
// reconciliation still fails, the commits are diverted to a uniquely named
// escape branch for a human to merge; content conflicts are never resolved
// automatically.
type Publisher struct {
	vcs    domain.VersionControl
	logger Logger

	// now and branchSuffix are injection points for deterministic tests.
	now          func() time.Time
	branchSuffix func() string
}

// NewPublisher creates a Publisher.
func NewPublisher(vcs domain.VersionControl, log Logger) *Publisher {
	return &Publisher{
		vcs:    vcs,
		logger: log,
		now:    time.Now,
		branchSuffix: func() string {
			return uuid.NewString()[:8]
		},
	}
}

// Publish pushes whatever is ahead of the remote tracking branch. It returns
// the terminal outcome of the cycle; an error is returned only when even the
// escape-branch path failed and the commits remain unpublished.
func (p *Publisher) Publish(ctx context.Context) (domain.SyncOutcome, error) {
	// A failed fetch only means the ahead count works from local knowledge.
	if err := p.vcs.Fetch(ctx); err != nil {
		p.logger.Warn(ctx, "fetch failed, proceeding with local tracking state", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ahead, err := p.vcs.AheadCount(ctx)
	if err != nil {
		return domain.SyncOutcome{}, fmt.Errorf("ahead count: %w", err)
	}

	if ahead == 0 {
		p.logger.Debug(ctx, "nothing to publish", nil)
		return domain.SyncOutcome{AheadCount: 0, Published: true}, nil
	}

	outcome := domain.SyncOutcome{AheadCount: ahead}

	if err := p.vcs.Push(ctx); err == nil {
		p.logger.Info(ctx, "published commits", map[string]interface{}{"ahead": ahead})
		outcome.Published = true
		return outcome, nil
	} else {
		p.logger.Warn(ctx, "push rejected, rebasing onto remote", map[string]interface{}{
			"ahead": ahead,
			"error": err.Error(),
		})
	}

	if err := p.vcs.Rebase(ctx); err != nil {
		p.logger.Warn(ctx, "rebase failed, diverting to escape branch", map[string]interface{}{
			"error": err.Error(),
		})
		return p.divert(ctx, outcome)
	}

	if err := p.vcs.Push(ctx); err == nil {
		p.logger.Info(ctx, "published commits after rebase", map[string]interface{}{"ahead": ahead})
		outcome.Published = true
		return outcome, nil
	} else {
		p.logger.Warn(ctx, "push rejected again after rebase", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return p.divert(ctx, outcome)
}

// divert creates and pushes the escape branch holding the unpublishable
// commits, leaving the primary branch for manual reconciliation.
func (p *Publisher) divert(ctx context.Context, outcome domain.SyncOutcome) (domain.SyncOutcome, error) {
	name := p.conflictBranchName()

	if err := p.vcs.CreateBranch(ctx, name); err != nil {
		return outcome, fmt.Errorf("create escape branch %s: %w", name, err)
	}
	if err := p.vcs.PushBranch(ctx, name); err != nil {
		return outcome, fmt.Errorf("push escape branch %s: %w", name, err)
	}

	outcome.ConflictBranch = name
	p.logger.Warn(ctx, "manual merge required", map[string]interface{}{
		"branch": name,
		"ahead":  outcome.AheadCount,
	})
	return outcome, nil
}

// conflictBranchName builds a branch name unique across runs. The random
// suffix keeps rapid repeated failures within the same second from reusing a
// name.
func (p *Publisher) conflictBranchName() string {
	stamp := p.now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s-%s-%s", conflictBranchPrefix, stamp, p.branchSuffix())
}
