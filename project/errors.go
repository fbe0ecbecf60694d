package project

import "errors"

var (
	// ErrCommitIndex indicates a commit index outside the project.
	ErrCommitIndex = errors.New("project: commit index out of range")
	// ErrRootCommit indicates an attempt to delete or move the root commit.
	ErrRootCommit = errors.New("project: root commit cannot be deleted or moved")
	// ErrUnknownPayload indicates a persisted payload type with no registered factory.
	ErrUnknownPayload = errors.New("project: unknown payload type")
	// ErrVersion indicates a project file written by an unsupported version.
	ErrVersion = errors.New("project: unsupported file version")
)
