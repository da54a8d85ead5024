package catalog

import "github.com/FACorreiaa/easytrip-api/internal/types"

// Result is one rendering of the browse list.
type Result struct {
	Visible []types.Place `json:"visible"`
	Total   int           `json:"total"`
	HasMore bool          `json:"hasMore"`
}

// Run filters, sorts and windows all.
func Run(all []types.Place, c Criteria, key SortKey, pageSize, pageCount int) Result {
	filtered := all
	if c.IsActive() {
		filtered = Filter(all, c)
	}
	return Paginate(Sort(filtered, key), pageSize, pageCount)
}

// Paginate windows an already ordered list.
func Paginate(ordered []types.Place, pageSize, pageCount int) Result {
	page := Window(ordered, pageSize, pageCount)
	visible := page.Items
	if visible == nil {
		visible = []types.Place{}
	}
	return Result{
		Visible: visible,
		Total:   len(ordered),
		HasMore: page.HasMore,
	}
}
