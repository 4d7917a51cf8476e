package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue holds the batch work items in user insertion order. Reads return
// copies so observers never see a half-applied mutation; writes are expected
// to come from a single orchestrator run at a time.
type Queue struct {
	mu    sync.RWMutex
	items []*WorkItem
}

func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a work item and returns its id, assigning one when absent.
func (q *Queue) Add(item WorkItem) string {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, &item)
	return item.ID
}

// Remove drops the item with the given id. Items are never dropped
// automatically; this is the explicit user action.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns a copy of the item with the given id.
func (q *Queue) Get(id string) (WorkItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, it := range q.items {
		if it.ID == id {
			return copyItem(it), true
		}
	}
	return WorkItem{}, false
}

// Snapshot returns copies of all items in queue order.
func (q *Queue) Snapshot() []WorkItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]WorkItem, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, copyItem(it))
	}
	return out
}

// IDs returns the item ids in queue order.
func (q *Queue) IDs() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]string, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, it.ID)
	}
	return out
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Mutate applies fn to the item with the given id under the queue lock.
// Only the orchestrator may call it while a run is active; handlers must
// stick to Add/Remove and the read-side accessors.
func (q *Queue) Mutate(id string, fn func(*WorkItem)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.ID == id {
			fn(it)
			return true
		}
	}
	return false
}

func copyItem(it *WorkItem) WorkItem {
	cp := *it
	if it.Outputs != nil {
		cp.Outputs = append([]string(nil), it.Outputs...)
	}
	if it.Params != nil {
		cp.Params = append([]byte(nil), it.Params...)
	}
	return cp
}
