package domain

import "strings"

// AllocationEntry is one tanker assignment for a village in need.
type AllocationEntry struct {
	VillageID        string  `json:"village_id" validate:"required"`
	VillageName      string  `json:"village_name"`
	DeficitLiters    float64 `json:"deficit_liters" validate:"gte=0"`
	AllocatedLiters  float64 `json:"allocated_liters" validate:"gte=0"`
	TankersAllocated int     `json:"tankers_allocated" validate:"gte=0"`
	PriorityScore    float64 `json:"priority_score"`
	TankerID         string  `json:"tanker_id"`
}

// AllocationPlan is the allocator's full output.
type AllocationPlan struct {
	TotalVillagesInNeed  int               `json:"total_villages_in_need"`
	TotalTankersAssigned int               `json:"total_tankers_assigned"`
	Allocations          []AllocationEntry `json:"allocations"`
}

// TotalLiters sums allocated liters across all entries.
func (p AllocationPlan) TotalLiters() float64 {
	var total float64
	for _, a := range p.Allocations {
		total += a.AllocatedLiters
	}
	return total
}

// ForVillage returns the first entry referencing villageID.
func (p AllocationPlan) ForVillage(villageID string) (AllocationEntry, bool) {
	for _, a := range p.Allocations {
		if a.VillageID == villageID {
			return a, true
		}
	}
	return AllocationEntry{}, false
}

// TankersFor returns the tankers allocated to villageID. A village without an
// entry gets 0.
func (p AllocationPlan) TankersFor(villageID string) int {
	a, ok := p.ForVillage(villageID)
	if !ok {
		return 0
	}
	return a.TankersAllocated
}

// FilterAllocations keeps entries whose village name or id contains term,
// ignoring case. An empty term keeps everything. The input is not modified.
func FilterAllocations(entries []AllocationEntry, term string) []AllocationEntry {
	q := strings.ToLower(strings.TrimSpace(term))
	out := make([]AllocationEntry, 0, len(entries))
	for _, a := range entries {
		if q == "" ||
			strings.Contains(strings.ToLower(a.VillageName), q) ||
			strings.Contains(strings.ToLower(a.VillageID), q) {
			out = append(out, a)
		}
	}
	return out
}
