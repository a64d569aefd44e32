package query

import "github.com/couchcryptid/drought-dashboard/internal/domain"

// View is the grid's query state. It is owned by whoever renders the grid
// and read by the pipeline; it holds no village data.
//
// Changing the search term or the status filter always returns to page 1.
type View struct {
	search   string
	status   Status
	field    SortField
	dir      Direction
	page     int
	pageSize int
}

// NewView returns a view on page 1 showing all villages in backend order.
func NewView(pageSize int) *View {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &View{status: StatusAll, dir: Asc, page: 1, pageSize: pageSize}
}

// SetSearch replaces the search term and resets to page 1.
func (v *View) SetSearch(term string) {
	v.search = term
	v.page = 1
}

// SetStatus replaces the status filter and resets to page 1.
func (v *View) SetStatus(s Status) {
	v.status = s
	v.page = 1
}

// SetSort sorts by field. Choosing the current field again flips the
// direction; a new field starts ascending.
func (v *View) SetSort(field SortField) {
	if field == v.field && field != SortNone {
		if v.dir == Asc {
			v.dir = Desc
		} else {
			v.dir = Asc
		}
		return
	}
	v.field = field
	v.dir = Asc
}

// SetSortDirection sets field and direction explicitly.
func (v *View) SetSortDirection(field SortField, dir Direction) {
	v.field = field
	v.dir = dir
}

// SetPage records the requested page. Clamping happens in Page.
func (v *View) SetPage(page int) {
	v.page = page
}

// Criteria returns the current search, filter, and sort settings.
func (v *View) Criteria() Criteria {
	return Criteria{Search: v.search, Status: v.status, SortField: v.field, Direction: v.dir}
}

// CurrentPage returns the requested page before clamping.
func (v *View) CurrentPage() int { return v.page }

// Rows applies the view's criteria without paginating. This is the set the
// CSV export writes.
func (v *View) Rows(villages []domain.Village) []domain.Village {
	return Apply(villages, v.Criteria())
}

// Page applies the criteria and returns the current page. The stored page is
// updated to the clamped value so the next render agrees with this one.
func (v *View) Page(villages []domain.Village) Page {
	p := Paginate(v.Rows(villages), v.page, v.pageSize)
	v.page = p.Page
	return p
}
