package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attrsync/attrsync/internal/domain"
	"github.com/attrsync/attrsync/internal/infrastructure/config"
)

// Test mocks for dependency injection testing.

// mockLogger implements the Logger interface for testing.
type mockLogger struct{}

func (m *mockLogger) Info(_ context.Context, _ string, _ map[string]interface{})           {}
func (m *mockLogger) Debug(_ context.Context, _ string, _ map[string]interface{})          {}
func (m *mockLogger) Warn(_ context.Context, _ string, _ map[string]interface{})           {}
func (m *mockLogger) Error(_ context.Context, _ string, _ error, _ map[string]interface{}) {}

// mockVCS implements domain.VersionControl for testing.
type mockVCS struct {
	statusEntries []domain.ChangeEntry
	statusCalls   int
	pushCalls     int
}

func (m *mockVCS) Status(_ context.Context) ([]domain.ChangeEntry, error) {
	m.statusCalls++
	return m.statusEntries, nil
}

func (m *mockVCS) Stage(_ context.Context, _ string) error  { return nil }
func (m *mockVCS) Remove(_ context.Context, _ string) error { return nil }

func (m *mockVCS) Commit(_ context.Context, _ string, _ domain.Identity) error { return nil }

func (m *mockVCS) Fetch(_ context.Context) error { return nil }

func (m *mockVCS) AheadCount(_ context.Context) (int, error) { return 0, nil }

func (m *mockVCS) Push(_ context.Context) error {
	m.pushCalls++
	return nil
}

func (m *mockVCS) Rebase(_ context.Context) error { return nil }

func (m *mockVCS) CreateBranch(_ context.Context, _ string) error { return nil }

func (m *mockVCS) PushBranch(_ context.Context, _ string) error { return nil }

// mockStore implements domain.RecordStore for testing.
type mockStore struct {
	closeCalled bool
}

func (m *mockStore) FileIDByPath(_ context.Context, _ string) (int64, bool, error) {
	return 0, false, nil
}

func (m *mockStore) RecentActivityByFileID(_ context.Context, _ int64, _ int) ([]domain.ActivityEntry, error) {
	return nil, nil
}

func (m *mockStore) SearchActivityByPath(_ context.Context, _ string, _ int) ([]domain.ActivityEntry, error) {
	return nil, nil
}

func (m *mockStore) DisplayName(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (m *mockStore) EmailPreference(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (m *mockStore) ProfileBlob(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (m *mockStore) Close() error {
	m.closeCalled = true
	return nil
}

// mockLock implements domain.CycleLock for testing.
type mockLock struct {
	acquireCalls int
	releaseCalls int
}

func (m *mockLock) Acquire() error {
	m.acquireCalls++
	return nil
}

func (m *mockLock) Release() error {
	m.releaseCalls++
	return nil
}

// mockReporter implements domain.ReportWriter for testing.
type mockReporter struct {
	reports []domain.CycleReport
}

func (m *mockReporter) WriteReport(report domain.CycleReport) error {
	m.reports = append(m.reports, report)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		RepoPath: "/srv/notes",
		Branch:   "main",
		Interval: time.Minute,
	}
}

// testDeps wires every factory to a working mock. Individual tests override
// the factories they exercise.
func testDeps(vcs *mockVCS, store *mockStore, lock *mockLock, reporter *mockReporter) *Dependencies {
	return &Dependencies{
		LoggerFactory: func() Logger { return &mockLogger{} },
		ConfigLoader:  func() (*config.Config, error) { return testConfig(), nil },
		VCSFactory: func(_ *config.Config, _ Logger) (domain.VersionControl, error) {
			return vcs, nil
		},
		StoreFactory: func(_ context.Context, _ *config.Config, _ Logger) (domain.RecordStore, error) {
			return store, nil
		},
		LockFactory: func(_ *config.Config) (domain.CycleLock, error) {
			return lock, nil
		},
		ReporterFactory: func() domain.ReportWriter { return reporter },
		Stderr:          &bytes.Buffer{},
	}
}

func resetFlags() {
	once = false
	interval = 0
	verbose = false
}

func TestNewRootCmd(t *testing.T) {
	resetFlags()
	SetDefaultDependencies(&Dependencies{})
	cmd := NewRootCmd()

	require.NotNil(t, cmd)
	assert.Equal(t, "attrsync", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.True(t, cmd.SilenceUsage)

	onceFlag := cmd.Flags().Lookup("once")
	require.NotNil(t, onceFlag)
	assert.Equal(t, "false", onceFlag.DefValue)

	intervalFlag := cmd.Flags().Lookup("interval")
	require.NotNil(t, intervalFlag)

	verboseFlag := cmd.Flags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
}

func TestRunSync_NilDependencies(t *testing.T) {
	resetFlags()
	cmd := NewRootCmdWithDeps(nil)
	cmd.SetArgs([]string{"--once"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependencies not configured")
}

func TestRunSync_ConfigError(t *testing.T) {
	resetFlags()
	deps := testDeps(&mockVCS{}, &mockStore{}, &mockLock{}, &mockReporter{})
	deps.ConfigLoader = func() (*config.Config, error) {
		return nil, config.ErrBranchRequired
	}

	cmd := NewRootCmdWithDeps(deps)
	cmd.SetArgs([]string{"--once"})

	err := cmd.Execute()

	require.Error(t, err)
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, ExitConfigError, exit.code)
}

func TestRunSync_NotARepository(t *testing.T) {
	resetFlags()
	deps := testDeps(&mockVCS{}, &mockStore{}, &mockLock{}, &mockReporter{})
	deps.VCSFactory = func(_ *config.Config, _ Logger) (domain.VersionControl, error) {
		return nil, fmt.Errorf("%w: /srv/notes", domain.ErrRepositoryNotFound)
	}

	cmd := NewRootCmdWithDeps(deps)
	cmd.SetArgs([]string{"--once"})

	err := cmd.Execute()

	require.Error(t, err)
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, ExitNotARepo, exit.code)
}

func TestRunSync_StoreUnavailableDegrades(t *testing.T) {
	resetFlags()
	vcs := &mockVCS{statusEntries: []domain.ChangeEntry{
		{Code: "??", Path: "report.docx"},
		{Code: " D", Path: "old.txt"},
	}}
	reporter := &mockReporter{}
	deps := testDeps(vcs, &mockStore{}, &mockLock{}, reporter)
	deps.StoreFactory = func(_ context.Context, _ *config.Config, _ Logger) (domain.RecordStore, error) {
		return nil, errors.New("dial tcp 10.0.0.9:5432: connect: no route to host")
	}

	cmd := NewRootCmdWithDeps(deps)
	cmd.SetArgs([]string{"--once"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 1, vcs.statusCalls)
	require.Len(t, reporter.reports, 1)
	assert.Len(t, reporter.reports[0].Commits, 2)
}

func TestRunSync_LockDirError(t *testing.T) {
	resetFlags()
	deps := testDeps(&mockVCS{}, &mockStore{}, &mockLock{}, &mockReporter{})
	deps.LockFactory = func(_ *config.Config) (domain.CycleLock, error) {
		return nil, errors.New("mkdir /locked: permission denied")
	}

	cmd := NewRootCmdWithDeps(deps)
	cmd.SetArgs([]string{"--once"})

	err := cmd.Execute()

	require.Error(t, err)
	var exit *exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, ExitLockDir, exit.code)
}

func TestRunSync_OnceSuccess(t *testing.T) {
	resetFlags()
	vcs := &mockVCS{statusEntries: []domain.ChangeEntry{{Code: " M", Path: "notes.txt"}}}
	store := &mockStore{}
	lock := &mockLock{}
	reporter := &mockReporter{}

	cmd := NewRootCmdWithDeps(testDeps(vcs, store, lock, reporter))
	cmd.SetArgs([]string{"--once"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 1, vcs.statusCalls)
	assert.Equal(t, 1, lock.acquireCalls)
	assert.Equal(t, 1, lock.releaseCalls)
	assert.Len(t, reporter.reports, 1)
	assert.True(t, store.closeCalled)
}

func TestRunSync_OnceWithoutStore(t *testing.T) {
	resetFlags()
	vcs := &mockVCS{}
	deps := testDeps(vcs, &mockStore{}, &mockLock{}, &mockReporter{})
	deps.StoreFactory = func(_ context.Context, _ *config.Config, _ Logger) (domain.RecordStore, error) {
		return nil, nil
	}

	cmd := NewRootCmdWithDeps(deps)
	cmd.SetArgs([]string{"--once"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 1, vcs.statusCalls)
}
