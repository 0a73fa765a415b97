// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"context"
	"strings"

	"github.com/attrsync/attrsync/internal/domain"
)

// Logger defines the logging interface required by the use cases.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// statusCodeLen is the expected length of a status tuple (index state +
// worktree state).
const statusCodeLen = 2

// Classify maps a status tuple to its commit bucket. Untracked paths are
// additions, anything carrying a D in either position is a deletion, and
// every remaining combination collapses into a modification rather than
// enumerating each index/worktree pairing.
func Classify(entry domain.ChangeEntry) domain.ChangeKind {
	if entry.Code == "??" {
		return domain.ChangeAddition
	}
	if strings.ContainsRune(entry.Code, 'D') {
		return domain.ChangeDeletion
	}
	return domain.ChangeModification
}

// validEntry reports whether an entry is well-formed. Empty paths or
// malformed status codes are defects in the status enumeration and are
// skipped rather than committed.
func validEntry(entry domain.ChangeEntry) bool {
	return entry.Path != "" && len(entry.Code) == statusCodeLen
}
