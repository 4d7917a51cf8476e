package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/patrickmn/go-cache"
)

// TemplateLoader reads workflow-graph documents from disk once and serves
// them from cache afterwards. Loaded bytes are treated as opaque: the builder
// unmarshals a fresh copy per call, so cached content is never mutated.
type TemplateLoader struct {
	dir   string
	cache *cache.Cache
}

// NewTemplateLoader creates a loader rooted at dir.
func NewTemplateLoader(dir string) *TemplateLoader {
	return &TemplateLoader{
		dir:   dir,
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// Load returns the raw template bytes for name, reading from disk on first
// use and validating that the document is well-formed JSON.
func (l *TemplateLoader) Load(name string) (json.RawMessage, error) {
	if raw, ok := l.cache.Get(name); ok {
		return raw.(json.RawMessage), nil
	}
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return nil, fmt.Errorf("load workflow template %q: %w", name, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("workflow template %q is not valid JSON", name)
	}
	raw := json.RawMessage(data)
	l.cache.Set(name, raw, cache.NoExpiration)
	return raw, nil
}

// Prime installs template bytes directly, bypassing the filesystem. Tests use
// it to exercise the builder without touching disk.
func (l *TemplateLoader) Prime(name string, data []byte) {
	l.cache.Set(name, json.RawMessage(data), cache.NoExpiration)
}
