// Package query filters, sorts, and paginates village snapshots for the grid.
//
// The order of operations is fixed: search, then status filter, then sort,
// then paginate. Every function returns a new slice and leaves its input
// untouched, so repeating a query over the same snapshot yields the same rows.
package query

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/couchcryptid/drought-dashboard/internal/domain"
)

// DefaultPageSize is the number of grid rows per page.
const DefaultPageSize = 10

// ErrUnknownSortField is returned when a sort field names no village column.
var ErrUnknownSortField = errors.New("unknown sort field")

// StatusAll disables the status filter.
const StatusAll = "all"

// Status is a status filter: StatusAll or a tier name.
type Status string

// ParseStatus accepts "all", an empty string, or a tier name.
func ParseStatus(s string) (Status, error) {
	if s == "" || strings.EqualFold(s, StatusAll) {
		return StatusAll, nil
	}
	t, err := domain.ParseTier(s)
	if err != nil {
		return "", err
	}
	return Status(t), nil
}

// SortField names a sortable village column.
type SortField string

const (
	SortNone          SortField = ""
	SortName          SortField = "name"
	SortID            SortField = "id"
	SortPopulation    SortField = "population"
	SortWSI           SortField = "wsi"
	SortGroundwater   SortField = "gw_current_level"
	SortRainfall      SortField = "rainfall_dev_pct"
	SortPriorityScore SortField = "priority_score"
)

var sortFields = []SortField{SortName, SortID, SortPopulation, SortWSI, SortGroundwater, SortRainfall, SortPriorityScore}

// ParseSortField accepts a column name; an empty string means no sort.
func ParseSortField(s string) (SortField, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortNone, nil
	}
	for _, f := range sortFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortField, s)
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" or "desc"; anything else is ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// Criteria is everything Apply needs. Pagination is a separate step.
type Criteria struct {
	Search    string
	Status    Status
	SortField SortField
	Direction Direction
}

// Apply runs search, status filter, and sort over villages.
func Apply(villages []domain.Village, c Criteria) []domain.Village {
	out := Search(villages, c.Search)
	out = FilterStatus(out, c.Status)
	return Sort(out, c.SortField, c.Direction)
}

// Search keeps villages whose name or id contains term, ignoring case.
func Search(villages []domain.Village, term string) []domain.Village {
	q := strings.ToLower(strings.TrimSpace(term))
	out := make([]domain.Village, 0, len(villages))
	for _, v := range villages {
		if q == "" ||
			strings.Contains(strings.ToLower(v.Name), q) ||
			strings.Contains(strings.ToLower(v.ID), q) {
			out = append(out, v)
		}
	}
	return out
}

// FilterStatus keeps villages classified into the status tier.
func FilterStatus(villages []domain.Village, status Status) []domain.Village {
	out := make([]domain.Village, 0, len(villages))
	for _, v := range villages {
		if status == "" || status == StatusAll || domain.Tier(status) == v.Tier() {
			out = append(out, v)
		}
	}
	return out
}

// Sort orders a copy of villages by field. Equal keys keep their input order.
func Sort(villages []domain.Village, field SortField, dir Direction) []domain.Village {
	out := slices.Clone(villages)
	if out == nil {
		out = []domain.Village{}
	}
	compare := comparator(field)
	if compare == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b domain.Village) int {
		if dir == Desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out
}

func comparator(field SortField) func(a, b domain.Village) int {
	switch field {
	case SortName:
		return func(a, b domain.Village) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case SortID:
		return func(a, b domain.Village) int {
			return strings.Compare(strings.ToLower(a.ID), strings.ToLower(b.ID))
		}
	case SortPopulation:
		return func(a, b domain.Village) int { return cmp.Compare(a.Population, b.Population) }
	case SortWSI:
		return numeric(func(v domain.Village) float64 { return v.WSI })
	case SortGroundwater:
		return numeric(func(v domain.Village) float64 { return v.GWCurrentLevel })
	case SortRainfall:
		return numeric(func(v domain.Village) float64 { return v.RainfallDevPct })
	case SortPriorityScore:
		return numeric(func(v domain.Village) float64 { return v.PriorityScore })
	}
	return nil
}

// numeric compares a float column, treating NaN as 0 like a missing value.
func numeric(key func(domain.Village) float64) func(a, b domain.Village) int {
	return func(a, b domain.Village) int {
		return cmp.Compare(orZero(key(a)), orZero(key(b)))
	}
}

func orZero(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return f
}
