package catalog

import (
	"sync"

	"github.com/FACorreiaa/easytrip-api/internal/types"
)

// DefaultPageSize is used when the caller sends no usable page size.
const DefaultPageSize = 12

// Page is a prefix of an ordered result.
type Page struct {
	Items   []types.Place `json:"items"`
	HasMore bool          `json:"hasMore"`
}

// Window exposes the first pageSize*pageCount items of ordered. It is a
// growing prefix, not an offset window.
func Window(ordered []types.Place, pageSize, pageCount int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageCount < 1 {
		pageCount = 1
	}
	n := len(ordered)
	if pageCount <= n/pageSize {
		n = pageSize * pageCount
	}
	return Page{
		Items:   ordered[:n:n],
		HasMore: n < len(ordered),
	}
}

// Pager tracks the page count of a "load more" list. The count resets to 1
// whenever the criteria or the sort key change. It is safe for concurrent use.
type Pager struct {
	mu       sync.Mutex
	criteria Criteria
	sort     SortKey
	pages    int
}

// Current returns the page count for the given inputs, resetting it first
// when they differ from the previous call.
func (p *Pager) Current(c Criteria, key SortKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observe(c, key)
	return p.pages
}

// LoadMore grows the window by one page and returns the new page count.
func (p *Pager) LoadMore(c Criteria, key SortKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.observe(c, key) {
		p.pages++
	}
	return p.pages
}

// Reset forgets the previous inputs.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = 0
}

// observe reports whether the pager was reset.
func (p *Pager) observe(c Criteria, key SortKey) bool {
	key = ParseSortKey(string(key))
	if p.pages > 0 && p.sort == key && p.criteria.Equal(c) {
		return false
	}
	p.criteria = c.Normalize()
	p.sort = key
	p.pages = 1
	return true
}
