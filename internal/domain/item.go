package domain

import (
	"encoding/json"
	"time"
)

// ItemStatus enumerates work item lifecycle states.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusUploading  ItemStatus = "uploading"
	StatusUploaded   ItemStatus = "uploaded"
	StatusSubmitting ItemStatus = "submitting"
	StatusPolling    ItemStatus = "polling"
	StatusSucceeded  ItemStatus = "succeeded"
	StatusFailed     ItemStatus = "failed"
	// StatusCanceled is never terminal: cancellation resets in-flight items to
	// StatusPending so a resumed run retries them. The constant exists so API
	// clients share one vocabulary with the provider-side job states.
	StatusCanceled ItemStatus = "canceled"
)

// InFlight reports whether the status belongs to an item the orchestrator is
// actively driving through upload/submit/poll.
func (s ItemStatus) InFlight() bool {
	switch s {
	case StatusUploading, StatusUploaded, StatusSubmitting, StatusPolling:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition occurs.
func (s ItemStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// WorkItem is one unit of batch work: an uploaded image to transform, or a
// pure text-to-image generation request. Its Status, Outputs and Err fields
// are mutated exclusively by the orchestrator; everyone else reads snapshots
// through the Queue.
type WorkItem struct {
	ID         string          `json:"id"`
	Filename   string          `json:"filename,omitempty"`
	MIME       string          `json:"mime,omitempty"`
	SourceData []byte          `json:"-"`
	RemoteURL  string          `json:"remote_url,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
	Status     ItemStatus      `json:"status"`
	Outputs    []string        `json:"outputs,omitempty"`
	Err        string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// HasSource reports whether the item carries a local file that must be
// uploaded before submission.
func (w WorkItem) HasSource() bool {
	return len(w.SourceData) > 0
}
