package registry

// DefaultPageSize is the number of rows per page when no size is given.
const DefaultPageSize = 20

// Pagination is an inclusive row window.
type Pagination struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// GetPagination returns the inclusive {From, To} window for a 0-based page.
// Page 0 and negative pages map to the first window. A size <= 0 uses
// DefaultPageSize. To-From+1 always equals the size.
func GetPagination(page, size int) Pagination {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page <= 0 {
		return Pagination{From: 0, To: size - 1}
	}
	from := page * size
	return Pagination{From: from, To: from + size - 1}
}

// Limit returns the number of rows in the window.
func (p Pagination) Limit() int { return p.To - p.From + 1 }
