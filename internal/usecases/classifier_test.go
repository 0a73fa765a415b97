package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/attrsync/attrsync/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		code string
		want domain.ChangeKind
	}{
		{
			name: "untracked is an addition",
			code: "??",
			want: domain.ChangeAddition,
		},
		{
			name: "worktree delete",
			code: " D",
			want: domain.ChangeDeletion,
		},
		{
			name: "staged delete",
			code: "D ",
			want: domain.ChangeDeletion,
		},
		{
			name: "delete combined with modify",
			code: "MD",
			want: domain.ChangeDeletion,
		},
		{
			name: "worktree modify",
			code: " M",
			want: domain.ChangeModification,
		},
		{
			name: "staged modify",
			code: "M ",
			want: domain.ChangeModification,
		},
		{
			name: "staged add counts as modification",
			code: "A ",
			want: domain.ChangeModification,
		},
		{
			name: "rename counts as modification",
			code: "R ",
			want: domain.ChangeModification,
		},
		{
			name: "unmerged counts as modification",
			code: "UU",
			want: domain.ChangeModification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(domain.ChangeEntry{Code: tt.code, Path: "file.txt"})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry domain.ChangeEntry
		want  bool
	}{
		{
			name:  "well-formed entry",
			entry: domain.ChangeEntry{Code: " M", Path: "notes/todo.md"},
			want:  true,
		},
		{
			name:  "empty path",
			entry: domain.ChangeEntry{Code: " M", Path: ""},
			want:  false,
		},
		{
			name:  "short status code",
			entry: domain.ChangeEntry{Code: "M", Path: "file.txt"},
			want:  false,
		},
		{
			name:  "long status code",
			entry: domain.ChangeEntry{Code: "???", Path: "file.txt"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validEntry(tt.entry))
		})
	}
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "Add", domain.ChangeAddition.String())
	assert.Equal(t, "Delete", domain.ChangeDeletion.String())
	assert.Equal(t, "Update", domain.ChangeModification.String())
}
