package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.Equal(t, Summary{}, s)
	c, w, sf := s.Distribution()
	assert.Zero(t, c)
	assert.Zero(t, w)
	assert.Zero(t, sf)
}

func TestSummarize(t *testing.T) {
	villages := []Village{
		{ID: "V001", Population: 1000, WSI: 82, GWCurrentLevel: 20, RainfallDevPct: -40},
		{ID: "V002", Population: 2000, WSI: 70, GWCurrentLevel: 10, RainfallDevPct: -20},
		{ID: "V003", Population: 3000, WSI: 40, GWCurrentLevel: 6, RainfallDevPct: 0},
		{ID: "V004", Population: 500, WSI: 71, GWCurrentLevel: 4, RainfallDevPct: 20},
	}

	s := Summarize(villages)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Critical)
	assert.Equal(t, 1, s.Warning)
	assert.Equal(t, 1, s.Safe)
	assert.Equal(t, 6500, s.TotalPopulation)
	assert.Equal(t, 1500, s.PopulationAtRisk)
	assert.InDelta(t, -10.0, s.AvgRainfallDevPct, 1e-9)
	assert.InDelta(t, 10.0, s.AvgGroundwaterLevel, 1e-9)

	c, w, sf := s.Distribution()
	assert.InDelta(t, 50.0, c, 1e-9)
	assert.InDelta(t, 25.0, w, 1e-9)
	assert.InDelta(t, 25.0, sf, 1e-9)
}

func TestSummarize_RecomputesEachCall(t *testing.T) {
	villages := []Village{{ID: "V001", Population: 100, WSI: 90}}
	first := Summarize(villages)

	villages[0].WSI = 10
	second := Summarize(villages)

	assert.Equal(t, 1, first.Critical)
	assert.Equal(t, 0, second.Critical)
	assert.Equal(t, 1, second.Safe)
}

func TestSummarizeWithPlan(t *testing.T) {
	plan := AllocationPlan{
		TotalVillagesInNeed:  2,
		TotalTankersAssigned: 3,
		Allocations: []AllocationEntry{
			{VillageID: "V001", AllocatedLiters: 20000, TankersAllocated: 2},
			{VillageID: "V002", AllocatedLiters: 10000, TankersAllocated: 1},
		},
	}

	s := SummarizeWithPlan([]Village{{ID: "V001", WSI: 75}}, plan)

	assert.Equal(t, 1, s.Critical)
	assert.InDelta(t, 30000.0, s.TotalAllocatedLiters, 1e-9)
	assert.Equal(t, 3, s.TotalTankers)
}
