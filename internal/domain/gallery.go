package domain

import "time"

// EntryKind distinguishes user uploads from generated artifacts.
type EntryKind string

const (
	KindUploaded  EntryKind = "uploaded"
	KindGenerated EntryKind = "generated"
)

// GalleryEntry is a durable record of a produced or uploaded artifact.
// Entries are never mutated after creation; the store keeps the newest
// entries first and evicts the oldest when full.
type GalleryEntry struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename,omitempty"`
	Kind      EntryKind `json:"kind"`
	Tool      string    `json:"tool,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GalleryStats summarizes the gallery occupancy.
type GalleryStats struct {
	Total     int `json:"total"`
	Uploaded  int `json:"uploaded"`
	Generated int `json:"generated"`
	Available int `json:"available"`
}
