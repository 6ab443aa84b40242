package view

// Page selects a window of a derived view. Number is 1-based. A Size of
// zero selects every row.
type Page struct {
	Number int `json:"number"`
	Size   int `json:"size"`
}

// PageInfo describes the window returned by Paginate.
type PageInfo struct {
	Number     int `json:"number"`
	Size       int `json:"size"`
	TotalRows  int `json:"total_rows"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns the rows of the requested page. Page numbers outside the
// valid range are clamped.
func Paginate(records []Record, page Page) ([]Record, PageInfo) {
	total := len(records)
	if page.Size <= 0 {
		return records, PageInfo{Number: 1, TotalRows: total, TotalPages: 1}
	}

	pages := (total + page.Size - 1) / page.Size
	if pages == 0 {
		pages = 1
	}
	number := min(max(page.Number, 1), pages)

	start := min((number-1)*page.Size, total)
	end := min(start+page.Size, total)
	return records[start:end], PageInfo{
		Number:     number,
		Size:       page.Size,
		TotalRows:  total,
		TotalPages: pages,
	}
}
