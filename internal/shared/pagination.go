package shared

// PageWindow describes one page of a listing that paginates without counting
// the full result set. HasNext comes from fetching one row past the page
// size, so large trails never pay a COUNT(*).
type PageWindow struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// NewPageWindow computes paging metadata for one page. hasNext reports
// whether a row beyond the page was seen.
func NewPageWindow(page, pageSize int, hasNext bool) PageWindow {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	window := PageWindow{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		window.PrevPage = page - 1
	}
	if hasNext {
		window.NextPage = page + 1
	}
	return window
}
