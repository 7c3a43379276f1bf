package extract

import "sync"

// ResultCache keeps the latest results per document for export requests.
// Oldest entries are evicted once Max is exceeded.
type ResultCache struct {
	Max int

	mu    sync.Mutex
	m     map[string]*Result
	order []string
}

func NewResultCache(max int) *ResultCache {
	return &ResultCache{Max: max, m: make(map[string]*Result)}
}

func (c *ResultCache) Put(r *Result) {
	if r == nil || r.DocID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[r.DocID]; !ok {
		c.order = append(c.order, r.DocID)
	}
	c.m[r.DocID] = r
	for c.Max > 0 && len(c.order) > c.Max {
		delete(c.m, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *ResultCache) Get(docID string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[docID]
	return r, ok
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
