package patrol

// Priority is the severity tier derived from an incident count.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

const (
	highThreshold   = 10
	mediumThreshold = 5
)

// Classify maps an incident count to a priority label.
func Classify(incidents int) Priority {
	if incidents >= highThreshold {
		return PriorityHigh
	}
	if incidents >= mediumThreshold {
		return PriorityMedium
	}
	return PriorityLow
}

// Severity orders priorities: Low < Medium < High.
func (p Priority) Severity() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

const (
	DefaultBaseMinutes        = 20
	DefaultPerIncidentMinutes = 10
)

// TimeEstimator recommends how long a patrol should stay at a hotspot.
type TimeEstimator struct {
	BaseMinutes        int
	PerIncidentMinutes int
}

// DefaultTimeEstimator uses 20 minutes plus 10 per incident.
var DefaultTimeEstimator = TimeEstimator{BaseMinutes: DefaultBaseMinutes, PerIncidentMinutes: DefaultPerIncidentMinutes}

// Minutes returns base + incidents*per. Negative counts count as zero.
func (e TimeEstimator) Minutes(incidents int) int {
	if incidents < 0 {
		incidents = 0
	}
	return e.BaseMinutes + incidents*e.PerIncidentMinutes
}

// RecommendMinutes applies the default estimator.
func RecommendMinutes(incidents int) int { return DefaultTimeEstimator.Minutes(incidents) }
