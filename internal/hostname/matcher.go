package hostname

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMatchCacheSize bounds the URL match cache.
const DefaultMatchCacheSize = 1024

// Matcher resolves URLs to configured hostnames. Lookups are cached per URL
// because navigation and badge refreshes hit the same URLs repeatedly.
type Matcher struct {
	mu         sync.RWMutex
	configured []string
	cache      *lru.Cache[string, string]
}

// NewMatcher creates a matcher over the given configured hostnames.
func NewMatcher(configured []string, cacheSize int) (*Matcher, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultMatchCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create match cache: %w", err)
	}
	m := &Matcher{cache: cache}
	m.SetHostnames(configured)
	return m, nil
}

// SetHostnames replaces the configured hostname set and drops the cache.
func (m *Matcher) SetHostnames(configured []string) {
	normalized := make([]string, 0, len(configured))
	for _, h := range configured {
		normalized = append(normalized, Normalize(h))
	}
	m.mu.Lock()
	m.configured = normalized
	m.cache.Purge()
	m.mu.Unlock()
}

// MatchURL returns the configured hostname the URL belongs to, if any.
func (m *Matcher) MatchURL(rawURL string) (string, bool) {
	m.mu.RLock()
	if cached, ok := m.cache.Get(rawURL); ok {
		m.mu.RUnlock()
		if cached == "" {
			return "", false
		}
		return cached, true
	}
	m.mu.RUnlock()

	host, ok := FromURL(rawURL)
	if !ok {
		m.store(rawURL, "")
		return "", false
	}

	m.mu.RLock()
	configured := m.configured
	m.mu.RUnlock()

	for _, c := range configured {
		if Matches(c, host) {
			m.store(rawURL, c)
			return c, true
		}
	}
	m.store(rawURL, "")
	return "", false
}

// MatchHost returns the configured hostname a bare host belongs to, if any.
func (m *Matcher) MatchHost(host string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.configured {
		if Matches(c, host) {
			return c, true
		}
	}
	return "", false
}

func (m *Matcher) store(rawURL, matched string) {
	m.mu.Lock()
	m.cache.Add(rawURL, matched)
	m.mu.Unlock()
}
