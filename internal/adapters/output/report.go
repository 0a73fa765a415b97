// Package output renders the cycle report for the operator. All lines go to
// the diagnostic stream: stdout is deliberately left uncontaminated so
// value-returning sub-operations keep a clean channel.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/attrsync/attrsync/internal/domain"
)

// Writer renders a CycleReport as timestamped, human-readable lines.
type Writer struct {
	out io.Writer
}

// NewWriter creates a Writer on the standard diagnostic stream.
func NewWriter() *Writer {
	return &Writer{out: os.Stderr}
}

// NewWriterWithOutput creates a Writer with a custom destination.
// This is useful for testing.
func NewWriterWithOutput(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteReport writes the report, one line per fact.
func (w *Writer) WriteReport(report domain.CycleReport) error {
	stamp := report.Started.Format(time.RFC3339)

	if _, err := fmt.Fprintf(w.out, "[%s] cycle: %d pending changes, %d commits\n",
		stamp, report.Changes, len(report.Commits)); err != nil {
		return err
	}
	for _, c := range report.Commits {
		if _, err := fmt.Fprintf(w.out, "[%s]   %s (%s <%s>)\n",
			stamp, c.Message, c.AuthorName, c.AuthorEmail); err != nil {
			return err
		}
	}

	outcome := report.Outcome
	switch {
	case outcome.ConflictBranch != "":
		_, err := fmt.Fprintf(w.out, "[%s] manual merge required: commits diverted to %s\n",
			stamp, outcome.ConflictBranch)
		return err
	case outcome.AheadCount == 0:
		_, err := fmt.Fprintf(w.out, "[%s] remote already up to date\n", stamp)
		return err
	case outcome.Published:
		_, err := fmt.Fprintf(w.out, "[%s] published %d commit(s)\n", stamp, outcome.AheadCount)
		return err
	default:
		_, err := fmt.Fprintf(w.out, "[%s] publication failed, %d commit(s) remain local\n",
			stamp, outcome.AheadCount)
		return err
	}
}
