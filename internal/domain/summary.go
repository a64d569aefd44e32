package domain

// Summary holds the dashboard aggregates for one village snapshot.
type Summary struct {
	Total               int     `json:"total"`
	Critical            int     `json:"critical"`
	Warning             int     `json:"warning"`
	Safe                int     `json:"safe"`
	TotalPopulation     int     `json:"total_population"`
	PopulationAtRisk    int     `json:"population_at_risk"`
	AvgRainfallDevPct   float64 `json:"avg_rainfall_dev_pct"`
	AvgGroundwaterLevel float64 `json:"avg_groundwater_level"`

	// Allocation KPIs, zero unless built with SummarizeWithPlan.
	TotalAllocatedLiters float64 `json:"total_allocated_liters"`
	TotalTankers         int     `json:"total_tankers"`
}

// Summarize computes all aggregates from scratch. Averages over an empty
// collection are 0.
func Summarize(villages []Village) Summary {
	var (
		s           Summary
		rainfallSum float64
		gwSum       float64
	)
	s.Total = len(villages)
	for _, v := range villages {
		switch v.Tier() {
		case TierCritical:
			s.Critical++
			s.PopulationAtRisk += v.Population
		case TierWarning:
			s.Warning++
		default:
			s.Safe++
		}
		s.TotalPopulation += v.Population
		rainfallSum += v.RainfallDevPct
		gwSum += v.GWCurrentLevel
	}
	if s.Total > 0 {
		s.AvgRainfallDevPct = rainfallSum / float64(s.Total)
		s.AvgGroundwaterLevel = gwSum / float64(s.Total)
	}
	return s
}

// SummarizeWithPlan is Summarize plus the allocation totals of plan.
func SummarizeWithPlan(villages []Village, plan AllocationPlan) Summary {
	s := Summarize(villages)
	s.TotalAllocatedLiters = plan.TotalLiters()
	s.TotalTankers = plan.TotalTankersAssigned
	return s
}

// Distribution returns each tier's share of the total in percent, in
// critical, warning, safe order. All zeros when the summary is empty.
func (s Summary) Distribution() (critical, warning, safe float64) {
	if s.Total == 0 {
		return 0, 0, 0
	}
	t := float64(s.Total)
	return float64(s.Critical) / t * 100, float64(s.Warning) / t * 100, float64(s.Safe) / t * 100
}
