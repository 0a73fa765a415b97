// Package cmd provides the CLI commands for attrsync.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/attrsync/attrsync/internal/domain"
	"github.com/attrsync/attrsync/internal/infrastructure/config"
	"github.com/attrsync/attrsync/internal/usecases"
)

// Exit codes for fatal failures. Per-entry commit failures and
// publication failures never affect the exit code.
const (
	ExitConfigError = 2
	ExitNotARepo    = 3
	ExitLockDir     = 4
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func() Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func() (*config.Config, error)

	// VCSFactory creates a VersionControl for the configured working tree.
	VCSFactory func(cfg *config.Config, log Logger) (domain.VersionControl, error)

	// StoreFactory creates the attribution RecordStore. It returns
	// (nil, nil) when no store is configured; the daemon then commits
	// everything under the default identity.
	StoreFactory func(ctx context.Context, cfg *config.Config, log Logger) (domain.RecordStore, error)

	// LockFactory creates the cycle lock for the configured working tree.
	LockFactory func(cfg *config.Config) (domain.CycleLock, error)

	// ReporterFactory creates a ReportWriter for cycle summaries.
	ReporterFactory func() domain.ReportWriter

	// Stderr is the writer for warnings/errors.
	Stderr io.Writer
}

// Command-line flags.
var (
	once     bool
	interval time.Duration
	verbose  bool
)

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for attrsync.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "attrsync",
		Short: "Mirror a working directory into Git history with per-change attribution",
		Long: `attrsync watches a Git working tree and turns every pending change into
a commit attributed to the person who made it, resolved from an external
record store. Commits are pushed to the configured branch; when the push
is rejected and a rebase cannot reconcile, local work is diverted to a
conflict branch for manual merge.

By default attrsync runs as a daemon, executing one synchronization
cycle per interval until interrupted.

Examples:
  # Run continuously with the configured interval
  attrsync

  # Run a single cycle and exit
  attrsync --once

  # Run every minute with debug logging
  attrsync --interval 1m -v`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, deps)
		},
	}

	rootCmd.Flags().BoolVar(&once, "once", false,
		"Run a single synchronization cycle and exit")
	rootCmd.Flags().DurationVar(&interval, "interval", 0,
		"Delay between cycles (overrides SYNC_INTERVAL)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	return rootCmd
}

// exitError carries a process exit code alongside the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// runSync executes the synchronization loop with injected dependencies.
func runSync(cmd *cobra.Command, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Set log level based on verbose flag (best-effort)
	if verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	cfg, err := deps.ConfigLoader()
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return &exitError{code: ExitConfigError, err: fmt.Errorf("configuration error: %w", err)}
	}
	if interval > 0 {
		cfg.Interval = interval
	}

	log.Info(ctx, "starting attrsync", map[string]interface{}{
		"path":     cfg.RepoPath,
		"branch":   cfg.Branch,
		"once":     once,
		"interval": cfg.Interval.String(),
		"verbose":  verbose,
	})

	vcs, err := deps.VCSFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to open git repository", err, map[string]interface{}{
			"path": cfg.RepoPath,
		})
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			return &exitError{
				code: ExitNotARepo,
				err:  fmt.Errorf("not a git repository: %s", cfg.RepoPath),
			}
		}
		return err
	}

	// An unreachable record store is transient: the cycle still runs and
	// attribution degrades to the default identity.
	store, err := deps.StoreFactory(ctx, cfg, log)
	if err != nil {
		log.Warn(ctx, "record store unavailable, using default identity", map[string]interface{}{
			"error": err.Error(),
		})
		store = nil
	}
	if store != nil {
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Warn(ctx, "failed to close record store", map[string]interface{}{
					"error": closeErr.Error(),
				})
			}
		}()
	}

	lock, err := deps.LockFactory(cfg)
	if err != nil {
		log.Error(ctx, "failed to prepare cycle lock", err, nil)
		return &exitError{code: ExitLockDir, err: fmt.Errorf("lock error: %w", err)}
	}

	cycle := buildCycle(cfg, vcs, store, lock, deps.ReporterFactory(), log)

	if once {
		return cycle.Run(ctx)
	}
	return runDaemon(ctx, cfg, cycle, log)
}

// buildCycle assembles the synchronization pipeline from the resolved
// configuration and adapters.
func buildCycle(
	cfg *config.Config,
	vcs domain.VersionControl,
	store domain.RecordStore,
	lock domain.CycleLock,
	reporter domain.ReportWriter,
	log Logger,
) *usecases.Cycle {
	resolver := usecases.NewAuthorResolver(store, log, cfg.RootPrefix, cfg.SystemAccounts)
	builder := usecases.NewCommitBuilder(vcs, resolver, log, domain.Identity{
		Name:  cfg.DefaultAuthorName,
		Email: cfg.DefaultAuthorEmail,
	}, cfg.EmailDomain)
	publisher := usecases.NewPublisher(vcs, log)
	return usecases.NewCycle(lock, vcs, builder, publisher, reporter, log)
}

// runDaemon runs one cycle immediately, then one per interval until the
// context is cancelled. Cycle errors are logged and do not stop the loop.
func runDaemon(ctx context.Context, cfg *config.Config, cycle *usecases.Cycle, log Logger) error {
	runOnce := func() {
		if err := cycle.Run(ctx); err != nil {
			log.Error(ctx, "synchronization cycle failed", err, nil)
		}
	}

	runOnce()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info(ctx, "shutting down", nil)
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

// Execute runs the root command and maps fatal errors to exit codes.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer.
// This is a best-effort operation; errors are intentionally ignored
// because there is no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return
	}
}
