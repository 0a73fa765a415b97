// Package main is the entry point for the attrsync daemon.
// attrsync mirrors a working directory into Git history, attributing each
// commit to the person who made the change via an external record store.
package main

import (
	"context"
	"os"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/attrsync/attrsync/cmd"
	"github.com/attrsync/attrsync/internal/adapters/git"
	"github.com/attrsync/attrsync/internal/adapters/lock"
	logadapter "github.com/attrsync/attrsync/internal/adapters/logger"
	"github.com/attrsync/attrsync/internal/adapters/output"
	"github.com/attrsync/attrsync/internal/adapters/store"
	"github.com/attrsync/attrsync/internal/domain"
	"github.com/attrsync/attrsync/internal/infrastructure/config"
)

func main() {
	// Create a single shared logger instance for the application
	zapLog := logger.NewZapLoggerFromConfig()
	adapter := logadapter.NewZapAdapter(zapLog)

	// Wire up production dependencies
	deps := &cmd.Dependencies{
		LoggerFactory: func() cmd.Logger {
			return adapter
		},

		ConfigLoader: config.Load,

		VCSFactory: func(cfg *config.Config, _ cmd.Logger) (domain.VersionControl, error) {
			return git.NewGoGitRepository(git.Options{
				Path:           cfg.RepoPath,
				Branch:         cfg.Branch,
				RemoteURL:      cfg.RemoteURL,
				Username:       cfg.GitUser,
				Token:          cfg.GitToken,
				CommitterName:  cfg.DefaultAuthorName,
				CommitterEmail: cfg.DefaultAuthorEmail,
			}, adapter.WithComponent("git"))
		},

		StoreFactory: func(ctx context.Context, cfg *config.Config, _ cmd.Logger) (domain.RecordStore, error) {
			if cfg.Store == nil {
				return nil, nil
			}
			return store.New(ctx, store.Config{
				Host:     cfg.Store.Host,
				Port:     cfg.Store.Port,
				Database: cfg.Store.Database,
				User:     cfg.Store.User,
				Password: cfg.Store.Password,
			}, adapter.WithComponent("store"))
		},

		LockFactory: func(cfg *config.Config) (domain.CycleLock, error) {
			return lock.New(cfg.RepoPath, cfg.LockDir)
		},

		ReporterFactory: func() domain.ReportWriter {
			return output.NewWriter()
		},

		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}
