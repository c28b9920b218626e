package scripting

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
)

type cachedProgram struct {
	fingerprint string
	program     *goja.Program
}

// ProgramCache caches compiled programs by key. An entry is reused only while
// the source fingerprint matches, so edited files are recompiled.
type ProgramCache struct {
	mu      sync.RWMutex
	entries map[string]cachedProgram
	hits    atomic.Int64
	misses  atomic.Int64
}

// CacheStats contains cache statistics
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// NewProgramCache creates an empty cache
func NewProgramCache() *ProgramCache {
	return &ProgramCache{entries: make(map[string]cachedProgram)}
}

// Get returns the program cached under key if its fingerprint matches
func (c *ProgramCache) Get(key, fingerprint string) (*goja.Program, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || entry.fingerprint != fingerprint {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.program, true
}

// Put stores a program, replacing any stale entry for key
func (c *ProgramCache) Put(key, fingerprint string, program *goja.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedProgram{fingerprint: fingerprint, program: program}
}

// Clear drops all entries
func (c *ProgramCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedProgram)
}

// Stats returns cache statistics
func (c *ProgramCache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{Entries: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
