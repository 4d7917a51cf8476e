package storage

import (
	"context"

	"fluxbatch/internal/domain"
)

// Default caps for the bounded local stores.
const (
	DefaultMaxGalleryEntries = 100
	DefaultMaxPrompts        = 10
)

// GalleryStore keeps a bounded, newest-first list of artifact records.
// Inserting beyond the cap evicts the oldest entry.
type GalleryStore interface {
	Add(ctx context.Context, entry domain.GalleryEntry) error
	List(ctx context.Context) ([]domain.GalleryEntry, error)
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (domain.GalleryStats, error)
}

// PromptStore keeps a bounded, deduplicated, most-recent-first prompt
// history. Re-saving an existing prompt moves it to the front.
type PromptStore interface {
	Save(ctx context.Context, prompt string) error
	List(ctx context.Context) ([]string, error)
	Last(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// CredentialStore holds the inference provider token. Token returns an empty
// string, not an error, when no token has been configured.
type CredentialStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
}
