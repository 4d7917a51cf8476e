package pipeline

import (
	"context"
	"time"

	"fluxbatch/internal/domain"
	"fluxbatch/internal/profile"
)

// JobHandle references a remote asynchronous job. It is owned by the poll
// that created it and is never persisted.
type JobHandle struct {
	ID        string
	CreatedAt time.Time
}

// JobUpdate is one observation of a remote job's state.
type JobUpdate struct {
	Status string
	Output []string
	Error  string
}

// Uploader resolves a local file into a durable, publicly fetchable URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename, mimeType string) (string, error)
}

// Submitter creates a remote job for a resolved request payload.
type Submitter interface {
	Submit(ctx context.Context, token string, req *profile.Request) (JobHandle, error)
}

// StatusFetcher queries a remote job's current state by handle.
type StatusFetcher interface {
	Fetch(ctx context.Context, token, jobID string) (JobUpdate, error)
}

// Recorder persists completed artifacts with provenance.
type Recorder interface {
	Add(ctx context.Context, entry domain.GalleryEntry) error
}

// CredentialSource supplies the provider token. The pipeline reads it once
// per run, never persists it, and never logs it.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}
