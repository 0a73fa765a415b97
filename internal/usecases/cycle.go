package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attrsync/attrsync/internal/domain"
)

// Cycle runs one full synchronization pass: classify pending changes, commit
// each with its resolved author, then publish. The exclusive lock guarantees
// at most one concurrent cycle system-wide; a cycle that finds the lock held
// is skipped entirely, never queued.
type Cycle struct {
	lock      domain.CycleLock
	vcs       domain.VersionControl
	builder   *CommitBuilder
	publisher *Publisher
	reporter  domain.ReportWriter
	logger    Logger
}

// NewCycle creates a Cycle from its collaborators.
func NewCycle(
	lock domain.CycleLock,
	vcs domain.VersionControl,
	builder *CommitBuilder,
	publisher *Publisher,
	reporter domain.ReportWriter,
	log Logger,
) *Cycle {
	return &Cycle{
		lock:      lock,
		vcs:       vcs,
		builder:   builder,
		publisher: publisher,
		reporter:  reporter,
		logger:    log,
	}
}

// Run executes one cycle. The lock is released on every exit path so a
// failed cycle cannot wedge the daemon. Per-entry and publication failures
// are warnings, not errors: the pending changes persist and self-heal on the
// next cycle. An error is returned only when the cycle could not run at all.
func (c *Cycle) Run(ctx context.Context) error {
	if err := c.lock.Acquire(); err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			c.logger.Info(ctx, "another cycle is running, skipping", nil)
			return nil
		}
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	defer func() {
		if err := c.lock.Release(); err != nil {
			c.logger.Warn(ctx, "releasing sync lock failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	started := time.Now()

	entries, err := c.vcs.Status(ctx)
	if err != nil {
		return fmt.Errorf("enumerate working-tree status: %w", err)
	}
	c.logger.Info(ctx, "cycle started", map[string]interface{}{
		"pending_changes": len(entries),
	})

	commits := c.builder.Run(ctx, entries)

	outcome, err := c.publisher.Publish(ctx)
	if err != nil {
		// Publication failure is transient by design: commits stay local
		// and the next cycle retries.
		c.logger.Error(ctx, "publication failed, commits remain local", err, map[string]interface{}{
			"commits": len(commits),
		})
	}

	report := domain.CycleReport{
		Started: started,
		Changes: len(entries),
		Commits: commits,
		Outcome: outcome,
	}
	if err := c.reporter.WriteReport(report); err != nil {
		c.logger.Warn(ctx, "writing cycle report failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	c.logger.Info(ctx, "cycle finished", map[string]interface{}{
		"commits":         len(commits),
		"ahead":           outcome.AheadCount,
		"published":       outcome.Published,
		"conflict_branch": outcome.ConflictBranch,
		"elapsed":         time.Since(started).String(),
	})
	return nil
}
