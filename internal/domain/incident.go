package domain

import (
	"fmt"
	"time"
)

// Incident kinds.
const (
	IncidentCriticalFailure   = "Critical Failure"
	IncidentSupplyDegradation = "Supply Degradation"
)

// Incident is a feed entry raised for a village in the critical or warning tier.
type Incident struct {
	ID        string    `json:"id"`
	VillageID string    `json:"village_id"`
	Kind      string    `json:"kind"`
	Tier      Tier      `json:"tier"`
	WSI       float64   `json:"wsi"`
	Message   string    `json:"message"`
	RaisedAt  time.Time `json:"raised_at"`
}

// DeriveIncidents builds the incident feed for a snapshot in village order.
// Safe villages raise nothing.
func DeriveIncidents(villages []Village) []Incident {
	now := clock.Now().UTC()
	incidents := make([]Incident, 0, len(villages))
	for _, v := range villages {
		switch v.Tier() {
		case TierCritical:
			incidents = append(incidents, Incident{
				ID:        "crit-" + v.ID,
				VillageID: v.ID,
				Kind:      IncidentCriticalFailure,
				Tier:      TierCritical,
				WSI:       v.WSI,
				Message: fmt.Sprintf("%s groundwater reserves depleted beyond %.0f%% threshold. Immediate tanker rerouting mandatory.",
					v.Name, CriticalThreshold),
				RaisedAt: now,
			})
		case TierWarning:
			incidents = append(incidents, Incident{
				ID:        "warn-" + v.ID,
				VillageID: v.ID,
				Kind:      IncidentSupplyDegradation,
				Tier:      TierWarning,
				WSI:       v.WSI,
				Message: fmt.Sprintf("%s entered Warning state. WSI at %.1f. Preventative allocation recommended.",
					v.Name, v.WSI),
				RaisedAt: now,
			})
		}
	}
	return incidents
}
