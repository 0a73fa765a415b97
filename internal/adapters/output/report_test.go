package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attrsync/attrsync/internal/domain"
)

var reportStart = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestWriter_WriteReport_Published(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriterWithOutput(&buf)

	err := writer.WriteReport(domain.CycleReport{
		Started: reportStart,
		Changes: 2,
		Commits: []domain.CommitRecord{
			{Message: "Add: docs/plan.md", AuthorName: "Alice Jones", AuthorEmail: "alice@corp.test"},
			{Message: "Delete: old.txt", AuthorName: "Sync Daemon", AuthorEmail: "sync@corp.test"},
		},
		Outcome: domain.SyncOutcome{AheadCount: 2, Published: true},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "[2026-03-14T09:26:53Z] cycle: 2 pending changes, 2 commits\n")
	assert.Contains(t, out, "Add: docs/plan.md (Alice Jones <alice@corp.test>)\n")
	assert.Contains(t, out, "Delete: old.txt (Sync Daemon <sync@corp.test>)\n")
	assert.Contains(t, out, "published 2 commit(s)\n")
}

func TestWriter_WriteReport_UpToDate(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriterWithOutput(&buf)

	err := writer.WriteReport(domain.CycleReport{
		Started: reportStart,
		Outcome: domain.SyncOutcome{AheadCount: 0, Published: true},
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "cycle: 0 pending changes, 0 commits\n")
	assert.Contains(t, buf.String(), "remote already up to date\n")
}

func TestWriter_WriteReport_ConflictBranch(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriterWithOutput(&buf)

	err := writer.WriteReport(domain.CycleReport{
		Started: reportStart,
		Changes: 1,
		Commits: []domain.CommitRecord{
			{Message: "Update: report.docx", AuthorName: "Bob", AuthorEmail: "bob@corp.test"},
		},
		Outcome: domain.SyncOutcome{
			AheadCount:     1,
			ConflictBranch: "sync-conflict-20260314T092653Z-ab12cd34",
		},
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(),
		"manual merge required: commits diverted to sync-conflict-20260314T092653Z-ab12cd34\n")
}

func TestWriter_WriteReport_PublicationFailed(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriterWithOutput(&buf)

	err := writer.WriteReport(domain.CycleReport{
		Started: reportStart,
		Changes: 1,
		Commits: []domain.CommitRecord{
			{Message: "Update: notes.txt", AuthorName: "Bob", AuthorEmail: "bob@corp.test"},
		},
		Outcome: domain.SyncOutcome{AheadCount: 3},
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "publication failed, 3 commit(s) remain local\n")
}
