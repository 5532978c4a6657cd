package dataset

import "sync"

// Cache memoizes loaded datasets by source identity for the lifetime of the
// process. A dataset is immutable after load, so cached values are safe to
// share across concurrent readers. There is no invalidation; restart to pick
// up a changed source.
type Cache struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewCache creates an empty dataset cache.
func NewCache() *Cache {
	return &Cache{datasets: make(map[string]*Dataset)}
}

// Load returns the cached dataset for key, calling load on the first request
// for that key. Concurrent first requests may both invoke load; the first
// stored result wins and is returned to everyone afterwards.
func (c *Cache) Load(key string, load func() (*Dataset, error)) (*Dataset, error) {
	c.mu.RLock()
	ds, ok := c.datasets[key]
	c.mu.RUnlock()
	if ok {
		return ds, nil
	}

	loaded, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.datasets[key]; ok {
		return existing, nil
	}
	c.datasets[key] = loaded
	return loaded, nil
}

// Get returns the cached dataset for key without loading.
func (c *Cache) Get(key string) (*Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.datasets[key]
	return ds, ok
}
