package usecases

import (
	"context"
	"fmt"

	"github.com/attrsync/attrsync/internal/domain"
)

// CommitBuilder turns classified working-tree changes into commits, one
// commit per change, each carrying the resolved author's identity. A failure
// on a single entry never aborts the batch: the underlying change stays
// pending and is retried naturally on the next cycle.
type CommitBuilder struct {
	vcs         domain.VersionControl
	attributor  domain.Attributor
	logger      Logger
	defaultID   domain.Identity
	emailDomain string
}

// NewCommitBuilder creates a CommitBuilder. defaultID is the daemon's
// fallback identity, used whenever attribution resolves nothing; emailDomain
// synthesizes an address when only a username is known.
func NewCommitBuilder(
	vcs domain.VersionControl,
	attributor domain.Attributor,
	log Logger,
	defaultID domain.Identity,
	emailDomain string,
) *CommitBuilder {
	return &CommitBuilder{
		vcs:         vcs,
		attributor:  attributor,
		logger:      log,
		defaultID:   defaultID,
		emailDomain: emailDomain,
	}
}

// Run processes entries strictly in classifier order and returns the records
// of the commits that were actually created.
func (b *CommitBuilder) Run(ctx context.Context, entries []domain.ChangeEntry) []domain.CommitRecord {
	var records []domain.CommitRecord

	for _, entry := range entries {
		if !validEntry(entry) {
			b.logger.Warn(ctx, "skipping malformed change entry", map[string]interface{}{
				"code": entry.Code,
				"path": entry.Path,
			})
			continue
		}

		record, err := b.commitOne(ctx, entry)
		if err != nil {
			b.logger.Warn(ctx, "skipping change entry", map[string]interface{}{
				"path":  entry.Path,
				"code":  entry.Code,
				"error": err.Error(),
			})
			continue
		}
		records = append(records, record)
	}

	return records
}

// commitOne stages one change and creates its commit.
func (b *CommitBuilder) commitOne(ctx context.Context, entry domain.ChangeEntry) (domain.CommitRecord, error) {
	kind := Classify(entry)
	id := b.identityFor(b.attributor.ResolveAuthorForPath(ctx, entry.Path))

	switch kind {
	case domain.ChangeDeletion:
		// Best effort: the path may already be gone from the index.
		if err := b.vcs.Remove(ctx, entry.Path); err != nil {
			b.logger.Warn(ctx, "untracking deleted path failed", map[string]interface{}{
				"path":  entry.Path,
				"error": err.Error(),
			})
		}
	default:
		if err := b.vcs.Stage(ctx, entry.Path); err != nil {
			return domain.CommitRecord{}, fmt.Errorf("stage %s: %w", entry.Path, err)
		}
	}

	message := fmt.Sprintf("%s: %s", kind, entry.Path)
	if err := b.vcs.Commit(ctx, message, id); err != nil {
		return domain.CommitRecord{}, fmt.Errorf("commit %s: %w", entry.Path, err)
	}

	b.logger.Info(ctx, "committed change", map[string]interface{}{
		"message": message,
		"author":  id.Name,
		"email":   id.Email,
	})

	return domain.CommitRecord{
		Message:     message,
		AuthorName:  id.Name,
		AuthorEmail: id.Email,
	}, nil
}

// identityFor converts an attribution record into a commit identity. An
// unresolved username means the daemon's default identity; a resolved
// username with missing display name or email defaults to the username
// itself and a synthesized address under the configured domain.
func (b *CommitBuilder) identityFor(record domain.AttributionRecord) domain.Identity {
	if record.Username == "" {
		return b.defaultID
	}

	id := domain.Identity{Name: record.DisplayName, Email: record.Email}
	if id.Name == "" {
		id.Name = record.Username
	}
	if id.Email == "" {
		id.Email = fmt.Sprintf("%s@%s", record.Username, b.emailDomain)
	}
	return id
}
