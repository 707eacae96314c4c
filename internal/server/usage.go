package server

import (
	"math"

	"raidrecord/internal/domain"
)

// Usage level thresholds, in percent of the hourly allowance.
const (
	usageLowThreshold    = 50
	usageMediumThreshold = 80
)

type UsageReport struct {
	PointsSpent  float64 `json:"pointsSpent"`
	PointsLimit  int     `json:"pointsLimit"`
	UsagePercent int     `json:"usagePercent"`
	ResetMinutes int     `json:"resetMinutes"`
	UsageLevel   string  `json:"usageLevel"`
}

// BuildUsageReport formats a rate-limit snapshot for display.
func BuildUsageReport(snap domain.RateLimitSnapshot) UsageReport {
	percent := 0.0
	if snap.LimitPerHour > 0 {
		percent = snap.PointsSpentThisHour / float64(snap.LimitPerHour) * 100
	}

	level := "high"
	switch {
	case percent < usageLowThreshold:
		level = "low"
	case percent < usageMediumThreshold:
		level = "medium"
	}

	return UsageReport{
		PointsSpent:  snap.PointsSpentThisHour,
		PointsLimit:  snap.LimitPerHour,
		UsagePercent: int(math.Round(percent)),
		ResetMinutes: int(math.Ceil(float64(snap.PointsResetIn) / 60)),
		UsageLevel:   level,
	}
}
