package citation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SnippetCache maps document stem -> section -> snippet and persists to a
// single JSON file. It is safe for concurrent use: each document is indexed
// at most once at a time, and documents that could not be read are not
// retried for the life of the cache.
type SnippetCache struct {
	path   string
	mu     sync.RWMutex
	docs   map[string]map[string]string
	misses map[string]struct{}
	logger *slog.Logger

	indexing singleflight.Group
	saveMu   sync.Mutex
}

// OpenCache loads the cache at path. A missing or corrupt file yields an
// empty cache; the corrupt case is logged.
func OpenCache(path string, logger *slog.Logger) *SnippetCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &SnippetCache{
		path:   path,
		docs:   make(map[string]map[string]string),
		misses: make(map[string]struct{}),
		logger: logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("snippet cache unreadable", "path", path, "error", err)
		}
		return c
	}
	if err := json.Unmarshal(data, &c.docs); err != nil {
		logger.Warn("snippet cache corrupt, starting empty", "path", path, "error", err)
		c.docs = make(map[string]map[string]string)
	}
	return c
}

// Save writes the cache back to its file. The file is replaced atomically
// so concurrent readers never see a partial document.
func (c *SnippetCache) Save() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	data, err := json.MarshalIndent(c.docs, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode snippet cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write snippet cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snippet cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snippet cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("write snippet cache: %w", err)
	}
	return nil
}

// Put stores the sections of one document.
func (c *SnippetCache) Put(doc string, sections map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[DocumentKey(doc)] = sections
}

// Sections returns the cached sections of doc.
func (c *SnippetCache) Sections(doc string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.docs[DocumentKey(doc)]
	return s, ok
}

// Snippet finds citation in the first listed document that has it. When
// offline is false, uncached plain-text documents are indexed from disk
// and the cache is saved.
func (c *SnippetCache) Snippet(citation string, docs []string, offline bool) (string, bool) {
	for _, doc := range docs {
		sections, ok := c.Sections(doc)
		if !ok && !offline {
			sections, ok = c.index(doc)
		}
		if !ok {
			continue
		}
		if s, found := sections[citation]; found {
			return s, true
		}
	}
	return "", false
}

// index reads a text document and caches its sections. Concurrent calls
// for the same document share one read.
func (c *SnippetCache) index(doc string) (map[string]string, bool) {
	v, _, _ := c.indexing.Do(doc, func() (any, error) {
		if sections, ok := c.Sections(doc); ok {
			return sections, nil
		}
		if c.missed(doc) {
			return nil, nil
		}
		if !isText(doc) {
			c.logger.Debug("skipping non-text code document", "path", doc)
			c.miss(doc)
			return nil, nil
		}
		data, err := os.ReadFile(doc)
		if err != nil {
			c.logger.Debug("code document unavailable", "path", doc, "error", err)
			c.miss(doc)
			return nil, nil
		}

		sections := IndexText(string(data), DefaultContextLines)
		c.Put(doc, sections)
		if err := c.Save(); err != nil {
			c.logger.Warn("snippet cache not saved", "path", c.path, "error", err)
		}
		return sections, nil
	})
	sections, _ := v.(map[string]string)
	return sections, sections != nil
}

func (c *SnippetCache) missed(doc string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.misses[doc]
	return ok
}

func (c *SnippetCache) miss(doc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses[doc] = struct{}{}
}

// DocumentKey is the cache key of a document: its file name without extension.
func DocumentKey(doc string) string {
	base := filepath.Base(doc)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isText(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		return true
	}
	return false
}
