package query

import "github.com/couchcryptid/drought-dashboard/internal/domain"

// Page is one page of an already filtered and sorted list.
type Page struct {
	Items      []domain.Village
	Page       int
	TotalPages int
	Total      int
}

// Paginate slices list into pages of size and returns the requested one.
// page is clamped to [1, TotalPages]; an empty list has a single empty page.
// A size below 1 falls back to DefaultPageSize.
func Paginate(list []domain.Village, page, size int) Page {
	if size < 1 {
		size = DefaultPageSize
	}
	totalPages := (len(list) + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	page = clamp(page, 1, totalPages)

	start := (page - 1) * size
	end := min(start+size, len(list))
	items := make([]domain.Village, end-start)
	copy(items, list[start:end])

	return Page{
		Items:      items,
		Page:       page,
		TotalPages: totalPages,
		Total:      len(list),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
