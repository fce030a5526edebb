package registry

import (
	"github.com/kaisigil/gate/pkg/logicaltime"
)

// invalidateLocked drops all three caches as one unit; the next read
// rebuilds them lazily. Must be called with s.mu held for writing.
func (s *Store) invalidateLocked() {
	s.cacheValid = false
	s.cacheURLs = nil
	s.cacheSeal = ""
	s.cacheState = nil
}

// ensureURLCacheLocked rebuilds cacheURLs and cacheSeal together if stale.
// Must be called with s.mu held (read or write).
func (s *Store) ensureURLCacheLocked() {
	if s.cacheValid {
		return
	}
	s.cacheURLs = orderedURLs(s.registry)
	s.cacheSeal = computeSeal(s.cacheURLs)
	s.cacheValid = true
}

// ExhaleURLs returns the full ordered URL list, rebuilding the cache on
// miss.
func (s *Store) ExhaleURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureURLCacheLocked()

	out := make([]string, len(s.cacheURLs))
	copy(out, s.cacheURLs)
	return out
}

// ExhaleURLsPage returns a clamped page of the ordered URL list plus the
// total count: offset clamps to >=0, limit clamps to >=1.
func (s *Store) ExhaleURLsPage(offset, limit int) ([]string, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureURLCacheLocked()

	total := len(s.cacheURLs)
	if offset >= total {
		return []string{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]string, end-offset)
	copy(page, s.cacheURLs[offset:end])
	return page, total
}

// GetSeal returns the cached seal, building the URL cache first if
// missing.
func (s *Store) GetSeal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureURLCacheLocked()
	return s.cacheSeal
}

// GetState ensures the URL cache and the state cache, then returns a
// shallow copy of the cached state.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureURLCacheLocked()
	if s.cacheState == nil {
		s.cacheState = s.buildStateLocked()
	}

	registry := make([]Entry, len(s.cacheState.Registry))
	copy(registry, s.cacheState.Registry)
	urls := make([]string, len(s.cacheState.URLs))
	copy(urls, s.cacheState.URLs)

	out := *s.cacheState
	out.Registry = registry
	out.URLs = urls
	return out
}

// buildStateLocked constructs the ordered entry/url lists from the URL
// cache, which must already be current (ensureURLCacheLocked). Must be
// called with s.mu held.
func (s *Store) buildStateLocked() *State {
	registry := make([]Entry, len(s.cacheURLs))
	for i, u := range s.cacheURLs {
		registry[i] = buildEntry(u, s.registry[u])
	}

	latest := logicaltime.Tuple{}
	if t := s.latestTupleLocked(); t != nil {
		latest = *t
	}

	urls := make([]string, len(s.cacheURLs))
	copy(urls, s.cacheURLs)

	return &State{
		Spec:      SpecVersion,
		TotalURLs: len(s.registry),
		Latest:    latest,
		StateSeal: s.cacheSeal,
		Registry:  registry,
		URLs:      urls,
	}
}
