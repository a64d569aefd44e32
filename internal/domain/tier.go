package domain

import (
	"errors"
	"fmt"
	"strings"
)

// WSI thresholds. A value equal to a threshold belongs to the lower tier.
const (
	CriticalThreshold = 70.0
	WarningThreshold  = 40.0
)

// ErrUnknownTier is returned when a status filter names no tier.
var ErrUnknownTier = errors.New("unknown tier")

// Tier is the severity bucket derived from a WSI score.
type Tier string

const (
	TierCritical Tier = "critical"
	TierWarning  Tier = "warning"
	TierSafe     Tier = "safe"
)

// Classify maps a WSI score to its tier. NaN compares false against both
// thresholds and lands in safe, the same as a missing score.
func Classify(wsi float64) Tier {
	switch {
	case wsi > CriticalThreshold:
		return TierCritical
	case wsi > WarningThreshold:
		return TierWarning
	default:
		return TierSafe
	}
}

// Label is the upper-case badge text shown in the grid and the export.
func (t Tier) Label() string {
	return strings.ToUpper(string(t))
}

// ParseTier parses a tier name in any letter case.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierCritical:
		return TierCritical, nil
	case TierWarning:
		return TierWarning, nil
	case TierSafe:
		return TierSafe, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}
