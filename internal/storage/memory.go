package storage

import (
	"context"
	"strings"
	"sync"

	"fluxbatch/internal/domain"
)

// MemoryGallery is the in-process GalleryStore used in development and tests.
type MemoryGallery struct {
	mu      sync.RWMutex
	entries []domain.GalleryEntry
	max     int
}

func NewMemoryGallery(max int) *MemoryGallery {
	if max <= 0 {
		max = DefaultMaxGalleryEntries
	}
	return &MemoryGallery{max: max}
}

func (g *MemoryGallery) Add(ctx context.Context, entry domain.GalleryEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append([]domain.GalleryEntry{entry}, g.entries...)
	if len(g.entries) > g.max {
		g.entries = g.entries[:g.max]
	}
	return nil
}

func (g *MemoryGallery) List(ctx context.Context) ([]domain.GalleryEntry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]domain.GalleryEntry(nil), g.entries...), nil
}

func (g *MemoryGallery) Remove(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, e := range g.entries {
		if e.ID == id {
			g.entries = append(g.entries[:i], g.entries[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (g *MemoryGallery) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = nil
	return nil
}

func (g *MemoryGallery) Stats(ctx context.Context) (domain.GalleryStats, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return statsOf(g.entries, g.max), nil
}

// MemoryPrompts is the in-process PromptStore.
type MemoryPrompts struct {
	mu      sync.RWMutex
	prompts []string
	max     int
}

func NewMemoryPrompts(max int) *MemoryPrompts {
	if max <= 0 {
		max = DefaultMaxPrompts
	}
	return &MemoryPrompts{max: max}
}

func (p *MemoryPrompts) Save(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make([]string, 0, len(p.prompts)+1)
	next = append(next, prompt)
	for _, existing := range p.prompts {
		if existing != prompt {
			next = append(next, existing)
		}
	}
	if len(next) > p.max {
		next = next[:p.max]
	}
	p.prompts = next
	return nil
}

func (p *MemoryPrompts) List(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.prompts...), nil
}

func (p *MemoryPrompts) Last(ctx context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.prompts) == 0 {
		return "", nil
	}
	return p.prompts[0], nil
}

func (p *MemoryPrompts) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = nil
	return nil
}

// MemoryCredentials is the in-process CredentialStore.
type MemoryCredentials struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryCredentials(token string) *MemoryCredentials {
	return &MemoryCredentials{token: strings.TrimSpace(token)}
}

func (c *MemoryCredentials) Token(ctx context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, nil
}

func (c *MemoryCredentials) SetToken(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
	return nil
}

func statsOf(entries []domain.GalleryEntry, max int) domain.GalleryStats {
	st := domain.GalleryStats{Total: len(entries)}
	for _, e := range entries {
		switch e.Kind {
		case domain.KindUploaded:
			st.Uploaded++
		case domain.KindGenerated:
			st.Generated++
		}
	}
	st.Available = max - st.Total
	if st.Available < 0 {
		st.Available = 0
	}
	return st
}
